package protocols

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFTPSession_OperationsRequireConnection(t *testing.T) {
	s := &FTPSession{Host: "ftp.example.com"}

	_, err := s.List("")
	assert.ErrorIs(t, err, ErrNotConnected)

	err = s.ChangeDir("/pub")
	assert.ErrorIs(t, err, ErrNotConnected)

	err = s.Download("/pub/data.rar", filepath.Join(t.TempDir(), "data.rar"), DownloadOptions{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestFTPSession_CloseIsIdempotent(t *testing.T) {
	s := &FTPSession{Host: "ftp.example.com"}
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestFTPSession_CurrentDirDefaultsToRoot(t *testing.T) {
	s := &FTPSession{Host: "ftp.example.com"}
	assert.Equal(t, "/", s.CurrentDir())
}

func TestFTPSession_ConnectRefused(t *testing.T) {
	s := &FTPSession{Host: "127.0.0.1", Port: 1, Timeout: 2 * time.Second}
	err := s.Connect()
	require.Error(t, err)

	var cerr *ConnectError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "127.0.0.1", cerr.Host)
	assert.Equal(t, 1, cerr.Port)

	// A failed connect leaves the session disconnected.
	_, err = s.List("")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSFTPSession_OperationsRequireConnection(t *testing.T) {
	s := &SFTPSession{Host: "sftp.example.com"}

	_, err := s.List("")
	assert.ErrorIs(t, err, ErrNotConnected)

	err = s.ChangeDir("/pub")
	assert.ErrorIs(t, err, ErrNotConnected)

	err = s.Download("/pub/data.rar", filepath.Join(t.TempDir(), "data.rar"), DownloadOptions{})
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, "/", s.CurrentDir())
}

func TestErrorTypes_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	assert.ErrorIs(t, &ConnectError{Host: "h", Port: 21, Err: cause}, cause)
	assert.ErrorIs(t, &RemoteError{Op: "list", Path: "/", Err: cause}, cause)
	assert.ErrorIs(t, &TransferError{Remote: "/a", Local: "b", Err: cause}, cause)
}
