package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"rarfetch/protocols"
)

// Fetcher sequences the download-then-extract pipeline for one remote
// archive at a time: download into DownloadDir (resuming a partial file if
// one is present), then expand into ExtractDir.
type Fetcher struct {
	Session     protocols.Session
	DownloadDir string
	ExtractDir  string
	Overwrite   bool
	BlockSize   int
}

// Fetch downloads remotePath and extracts it. It returns the local archive
// path, which is kept even when extraction fails so the caller can retry
// extraction without another download.
func (f *Fetcher) Fetch(ctx context.Context, remotePath string) (string, error) {
	if err := os.MkdirAll(f.DownloadDir, 0o755); err != nil {
		return "", err
	}
	localPath := filepath.Join(f.DownloadDir, path.Base(remotePath))

	if err := f.download(remotePath, localPath); err != nil {
		return localPath, err
	}
	slog.Info("download finished", "remote", remotePath, "local", localPath)

	if err := Extract(ctx, localPath, f.ExtractDir, f.Overwrite); err != nil {
		return localPath, err
	}
	slog.Info("extraction finished", "archive", localPath, "dest", f.ExtractDir)
	return localPath, nil
}

func (f *Fetcher) download(remotePath, localPath string) error {
	var offset int64
	if info, err := os.Stat(localPath); err == nil && info.Mode().IsRegular() {
		offset = info.Size()
	}

	opts := protocols.DownloadOptions{
		BlockSize:    f.BlockSize,
		ResumeOffset: offset,
		Progress:     logProgress(remotePath),
	}
	err := f.Session.Download(remotePath, localPath, opts)
	if err == nil {
		return nil
	}

	// A rejected restart leaves the partial file untouched; fall back to
	// a full download once before giving up.
	var terr *protocols.TransferError
	if offset > 0 && errors.As(err, &terr) && terr.Done == offset {
		slog.Warn("resume failed, restarting from scratch", "remote", remotePath, "offset", offset, "err", err)
		opts.ResumeOffset = 0
		return f.Session.Download(remotePath, localPath, opts)
	}
	return err
}

// logProgress returns a progress callback that logs at most once per ten
// percent of a known total, or once per 16 MiB when the size is unknown.
func logProgress(remotePath string) protocols.ProgressFunc {
	const unknownStep = 16 << 20
	var lastMark int64 = -1
	return func(done, total int64) {
		var mark int64
		if total > 0 {
			mark = done * 10 / total
		} else {
			mark = done / unknownStep
		}
		if mark == lastMark {
			return
		}
		lastMark = mark
		if total > 0 {
			slog.Info("downloading", "remote", remotePath, "done", done, "total", total)
		} else {
			slog.Info("downloading", "remote", remotePath, "done", done)
		}
	}
}
