package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mholt/archives"
)

var (
	// ErrMultiVolume marks an archive that declares itself a non-first
	// volume of a multi-part set. The extractor only signals this; it
	// never reconstructs multi-part archives.
	ErrMultiVolume = errors.New("archive is a continuation volume of a multi-part set")

	// ErrExtractorUnavailable marks an archive whose format no available
	// backend can read.
	ErrExtractorUnavailable = errors.New("no extractor available for archive format")
)

// UnsafePathError reports an archive member whose resolved target would
// escape the destination directory. It aborts the whole extraction.
type UnsafePathError struct {
	Member string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("unsafe path in archive: %s", e.Member)
}

var (
	partVolumePattern = regexp.MustCompile(`(?i)\.part(\d+)\.rar$`)
	contVolumePattern = regexp.MustCompile(`(?i)\.r\d{2}$`)
)

// isContinuationVolume reports whether name follows the naming convention
// of a non-first RAR volume (.partN.rar with N > 1, or the old-style .rNN
// continuation extensions).
func isContinuationVolume(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	if m := partVolumePattern.FindStringSubmatch(base); m != nil {
		n, err := strconv.Atoi(m[1])
		return err == nil && n > 1
	}
	return contVolumePattern.MatchString(base)
}

// Extract expands the archive at archivePath into destDir. Each member is
// checked against the destination before anything is written for it: the
// member's resolved parent directory must stay inside the canonical
// destination, which catches both ".." segments and symlink hops. A
// failing member aborts the remaining ones; members already written stay
// on disk (extraction is not transactional). overwrite controls whether
// existing targets are replaced or silently kept.
func Extract(ctx context.Context, archivePath, destDir string, overwrite bool) error {
	if isContinuationVolume(archivePath) || isNonFirstVolume(archivePath) {
		return fmt.Errorf("%s: %w", archivePath, ErrMultiVolume)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	format, stream, err := archives.Identify(ctx, archivePath, f)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return fmt.Errorf("%s: %w", archivePath, ErrExtractorUnavailable)
		}
		return fmt.Errorf("identify archive: %w", err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("%s: %w", archivePath, ErrExtractorUnavailable)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	destAbs, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	destReal, err := filepath.EvalSymlinks(destAbs)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	err = extractor.Extract(ctx, stream, func(ctx context.Context, info archives.FileInfo) error {
		return writeMember(destReal, info, overwrite)
	})
	if err != nil {
		var unsafe *UnsafePathError
		if errors.As(err, &unsafe) {
			return unsafe
		}
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	return nil
}

func writeMember(destReal string, info archives.FileInfo, overwrite bool) error {
	rel := path.Clean(strings.TrimLeft(filepath.ToSlash(info.NameInArchive), "/"))
	if rel == "" || rel == "." {
		return nil
	}
	target := filepath.Join(destReal, filepath.FromSlash(rel))

	// Per-member guard: resolve the target's parent through whatever
	// already exists on disk and require containment in the destination.
	// Checking the parent rather than the leaf tolerates directory
	// members that do not exist yet.
	parent, err := resolveExisting(filepath.Dir(target))
	if err != nil {
		return err
	}
	if parent != destReal && !strings.HasPrefix(parent, destReal+string(os.PathSeparator)) {
		return &UnsafePathError{Member: info.NameInArchive}
	}

	if info.IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if info.LinkTarget != "" {
		// Symlink members are never materialized.
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	if _, err := os.Lstat(target); err == nil {
		if !overwrite {
			return nil
		}
		if err := os.RemoveAll(target); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	src, err := info.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := info.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// resolveExisting canonicalizes p by resolving its deepest existing
// ancestor through symlinks and rejoining the not-yet-created remainder.
func resolveExisting(p string) (string, error) {
	suffix := ""
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(cur), suffix)
		cur = parent
	}
}
