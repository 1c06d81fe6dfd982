package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rarfetch/protocols"
)

// fakeSession serves in-memory remote files and records the resume offsets
// of every download request.
type fakeSession struct {
	files        map[string][]byte
	rejectResume bool
	offsets      []int64
}

func (f *fakeSession) Connect() error { return nil }

func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) CurrentDir() string { return "/" }

func (f *fakeSession) ChangeDir(string) error { return nil }

func (f *fakeSession) List(dir string) ([]protocols.Entry, error) {
	var entries []protocols.Entry
	for p, data := range f.files {
		if path.Dir(p) != dir {
			continue
		}
		entries = append(entries, protocols.Entry{
			Name: path.Base(p),
			Kind: protocols.KindFile,
			Size: uint64(len(data)),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (f *fakeSession) Download(remotePath, localPath string, opts protocols.DownloadOptions) error {
	f.offsets = append(f.offsets, opts.ResumeOffset)
	data, ok := f.files[remotePath]
	if !ok {
		return &protocols.TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: errors.New("no such file")}
	}
	if opts.ResumeOffset > 0 && f.rejectResume {
		return &protocols.TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: errors.New("restart not supported")}
	}
	if opts.ResumeOffset > int64(len(data)) {
		return &protocols.TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: errors.New("offset beyond file")}
	}

	flags := os.O_WRONLY | os.O_CREATE
	if opts.ResumeOffset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(localPath, flags, 0o644)
	if err != nil {
		return &protocols.TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: err}
	}
	defer out.Close()

	rest := data[opts.ResumeOffset:]
	if _, err := out.Write(rest); err != nil {
		return &protocols.TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: err}
	}
	if opts.Progress != nil && len(rest) > 0 {
		opts.Progress(int64(len(data)), int64(len(data)))
	}
	return nil
}

// tarBytes builds a tar archive in memory for fake remote files.
func tarBytes(t *testing.T, members []tarMember) []byte {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "m.tar")
	writeTarArchive(t, p, members)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return data
}

func newTestFetcher(t *testing.T, session protocols.Session) *Fetcher {
	t.Helper()
	base := t.TempDir()
	return &Fetcher{
		Session:     session,
		DownloadDir: filepath.Join(base, "downloads"),
		ExtractDir:  filepath.Join(base, "extracted"),
		Overwrite:   true,
	}
}

func TestFetcher_DownloadAndExtract(t *testing.T) {
	archive := tarBytes(t, []tarMember{
		{name: "payload.txt", data: []byte("payload")},
	})
	session := &fakeSession{files: map[string][]byte{"/pub/bundle.tar": archive}}
	fetcher := newTestFetcher(t, session)

	local, err := fetcher.Fetch(context.Background(), "/pub/bundle.tar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fetcher.DownloadDir, "bundle.tar"), local)

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, archive, got)

	extracted, err := os.ReadFile(filepath.Join(fetcher.ExtractDir, "payload.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), extracted)
}

func TestFetcher_ResumesPartialFile(t *testing.T) {
	archive := tarBytes(t, []tarMember{
		{name: "payload.txt", data: bytes.Repeat([]byte{0x42}, 4096)},
	})
	session := &fakeSession{files: map[string][]byte{"/pub/bundle.tar": archive}}
	fetcher := newTestFetcher(t, session)

	// Simulate an interrupted earlier download.
	require.NoError(t, os.MkdirAll(fetcher.DownloadDir, 0o755))
	local := filepath.Join(fetcher.DownloadDir, "bundle.tar")
	cut := len(archive) / 2
	require.NoError(t, os.WriteFile(local, archive[:cut], 0o644))

	_, err := fetcher.Fetch(context.Background(), "/pub/bundle.tar")
	require.NoError(t, err)

	require.Len(t, session.offsets, 1)
	assert.Equal(t, int64(cut), session.offsets[0])

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, archive, got)
}

func TestFetcher_ResumeAtEndIsIdempotent(t *testing.T) {
	archive := tarBytes(t, []tarMember{
		{name: "payload.txt", data: []byte("done already")},
	})
	session := &fakeSession{files: map[string][]byte{"/pub/bundle.tar": archive}}
	fetcher := newTestFetcher(t, session)

	require.NoError(t, os.MkdirAll(fetcher.DownloadDir, 0o755))
	local := filepath.Join(fetcher.DownloadDir, "bundle.tar")
	require.NoError(t, os.WriteFile(local, archive, 0o644))

	_, err := fetcher.Fetch(context.Background(), "/pub/bundle.tar")
	require.NoError(t, err)

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, archive, got, "resume at end must not change the file")
}

func TestFetcher_ResumeRejectedFallsBackToFullDownload(t *testing.T) {
	archive := tarBytes(t, []tarMember{
		{name: "payload.txt", data: []byte("whole thing")},
	})
	session := &fakeSession{
		files:        map[string][]byte{"/pub/bundle.tar": archive},
		rejectResume: true,
	}
	fetcher := newTestFetcher(t, session)

	require.NoError(t, os.MkdirAll(fetcher.DownloadDir, 0o755))
	local := filepath.Join(fetcher.DownloadDir, "bundle.tar")
	require.NoError(t, os.WriteFile(local, archive[:10], 0o644))

	_, err := fetcher.Fetch(context.Background(), "/pub/bundle.tar")
	require.NoError(t, err)

	require.Len(t, session.offsets, 2)
	assert.Equal(t, int64(10), session.offsets[0])
	assert.Equal(t, int64(0), session.offsets[1])

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, archive, got)
}

func TestFetcher_KeepsPartialFileOnError(t *testing.T) {
	session := &fakeSession{files: map[string][]byte{}}
	fetcher := newTestFetcher(t, session)

	_, err := fetcher.Fetch(context.Background(), "/pub/missing.tar")
	require.Error(t, err)

	var terr *protocols.TransferError
	assert.True(t, errors.As(err, &terr))
	assert.True(t, strings.Contains(err.Error(), "missing.tar"))
}
