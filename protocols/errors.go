package protocols

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by directory and transfer operations invoked
// on a session without a live connection.
var ErrNotConnected = errors.New("session not connected")

// ConnectError reports a failed connection attempt (dial or login).
type ConnectError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// RemoteError reports a directory operation the server rejected. The
// session stays connected; the caller may retry.
type RemoteError struct {
	Op   string
	Path string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// TransferError reports a fault during a download. Done is the number of
// bytes written locally before the fault. The partial local file is left
// in place; the caller decides whether to retry, resume or discard.
type TransferError struct {
	Remote string
	Local  string
	Done   int64
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("download %s -> %s (%d bytes done): %v", e.Remote, e.Local, e.Done, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
