package protocols

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

// DefaultPort is the standard FTP control port.
const DefaultPort = 21

// DefaultTimeout bounds the connection handshake.
const DefaultTimeout = 20 * time.Second

type sessionState int

const (
	stateDisconnected sessionState = iota
	stateConnecting
	stateConnected
)

// FTPSession is a Session over FTP. The zero value with Host set is ready
// to Connect; Port and Timeout fall back to the defaults when unset.
type FTPSession struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration

	state      sessionState
	conn       *ftp.ServerConn
	currentDir string
}

var _ Session = (*FTPSession)(nil)

func (s *FTPSession) addr() (string, int) {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", s.Host, port), port
}

// Connect dials the server, logs in and switches the transfer mode to
// binary. Any previous connection is torn down first, so a session never
// holds two live connections. The recorded working path is the server's
// reported one, falling back to "/" when that query fails.
func (s *FTPSession) Connect() error {
	s.Close()
	s.state = stateConnecting

	addr, port := s.addr()
	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout))
	if err != nil {
		s.state = stateDisconnected
		return &ConnectError{Host: s.Host, Port: port, Err: err}
	}
	if err := c.Login(s.User, s.Password); err != nil {
		c.Quit()
		s.state = stateDisconnected
		return &ConnectError{Host: s.Host, Port: port, Err: err}
	}
	if err := c.Type(ftp.TransferTypeBinary); err != nil {
		c.Quit()
		s.state = stateDisconnected
		return &ConnectError{Host: s.Host, Port: port, Err: err}
	}

	s.conn = c
	s.state = stateConnected
	if pwd, err := c.CurrentDir(); err == nil {
		s.currentDir = pwd
	} else {
		s.currentDir = "/"
	}
	return nil
}

// Close tears the connection down. It is idempotent: closing a session
// that is already disconnected does nothing and returns nil.
func (s *FTPSession) Close() error {
	if s.conn == nil {
		s.state = stateDisconnected
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	s.state = stateDisconnected
	return err
}

func (s *FTPSession) CurrentDir() string {
	if s.currentDir == "" {
		return "/"
	}
	return s.currentDir
}

// ChangeDir switches the working directory and records the server's
// confirmed path. Servers may normalize the requested path, so the
// recorded value is re-queried rather than copied from the argument.
func (s *FTPSession) ChangeDir(path string) error {
	if s.state != stateConnected {
		return ErrNotConnected
	}
	if err := s.conn.ChangeDir(path); err != nil {
		return &RemoteError{Op: "cd", Path: path, Err: err}
	}
	pwd, err := s.conn.CurrentDir()
	if err != nil {
		return &RemoteError{Op: "pwd", Path: path, Err: err}
	}
	s.currentDir = pwd
	return nil
}

// List fetches a normalized directory listing. The structured tier (MLSD
// facts, or the library's parsed LIST) is attempted first; if the server
// rejects it, or it yields nothing because the library dropped lines it
// could not parse, the session falls back to the legacy free-text listing
// against the same path. Callers never need to know which mode the server
// speaks.
func (s *FTPSession) List(dir string) ([]Entry, error) {
	if s.state != stateConnected {
		return nil, ErrNotConnected
	}
	if dir == "" {
		dir = s.CurrentDir()
	}

	entries, err := listWithFallback(
		func() ([]Record, error) { return s.listStructured(dir) },
		func() ([]string, error) { return s.conn.NameList(dir) },
	)
	if err != nil {
		return nil, &RemoteError{Op: "list", Path: dir, Err: err}
	}
	return entries, nil
}

func (s *FTPSession) listStructured(dir string) ([]Record, error) {
	raw, err := s.conn.List(dir)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(raw))
	for _, e := range raw {
		r := Record{Name: e.Name, Type: "file", Size: strconv.FormatUint(e.Size, 10)}
		if e.Type == ftp.EntryTypeFolder {
			r.Type = "dir"
		}
		if !e.Time.IsZero() {
			r.Modify = e.Time.UTC().Format("20060102150405")
		}
		records = append(records, r)
	}
	return records, nil
}

// Download streams remotePath into localPath in blocks, reporting progress
// after every block. A positive ResumeOffset opens the local file for
// append and asks the server to restart at that offset; if the server
// rejects the restart the call fails before anything is appended. On a
// mid-stream fault the partial local file is preserved for the caller to
// retry, resume or discard.
func (s *FTPSession) Download(remotePath, localPath string, opts DownloadOptions) error {
	if s.state != stateConnected {
		return ErrNotConnected
	}

	var total int64 = -1
	if size, err := s.conn.FileSize(remotePath); err == nil {
		total = size
	}

	flags := os.O_WRONLY | os.O_CREATE
	if opts.ResumeOffset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(localPath, flags, 0o644)
	if err != nil {
		return &TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: err}
	}

	var resp *ftp.Response
	if opts.ResumeOffset > 0 {
		resp, err = s.conn.RetrFrom(remotePath, uint64(opts.ResumeOffset))
	} else {
		resp, err = s.conn.Retr(remotePath)
	}
	if err != nil {
		f.Close()
		return &TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: err}
	}

	done, copyErr := copyBlocks(f, resp, opts.BlockSize, opts.ResumeOffset, total, opts.Progress)
	closeErr := resp.Close()
	if err := f.Close(); copyErr == nil && closeErr == nil {
		closeErr = err
	}
	if copyErr != nil {
		return &TransferError{Remote: remotePath, Local: localPath, Done: done, Err: copyErr}
	}
	if closeErr != nil {
		return &TransferError{Remote: remotePath, Local: localPath, Done: done, Err: closeErr}
	}
	return nil
}
