package protocols

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// DefaultSFTPPort is the standard SSH port.
const DefaultSFTPPort = 22

// SFTPSession is a Session over SFTP with password authentication. It
// offers the same surface as FTPSession so callers can browse and fetch
// from either server type without caring which one they got.
type SFTPSession struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration

	state      sessionState
	sshConn    *ssh.Client
	client     *sftp.Client
	currentDir string
}

var _ Session = (*SFTPSession)(nil)

func (s *SFTPSession) Connect() error {
	s.Close()
	s.state = stateConnecting

	port := s.Port
	if port == 0 {
		port = DefaultSFTPPort
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	cfg := &ssh.ClientConfig{
		User: s.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(s.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := fmt.Sprintf("%s:%d", s.Host, port)
	conn, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		s.state = stateDisconnected
		return &ConnectError{Host: s.Host, Port: port, Err: err}
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		s.state = stateDisconnected
		return &ConnectError{Host: s.Host, Port: port, Err: err}
	}

	s.sshConn = conn
	s.client = client
	s.state = stateConnected
	if wd, err := client.Getwd(); err == nil {
		s.currentDir = wd
	} else {
		s.currentDir = "/"
	}
	return nil
}

func (s *SFTPSession) Close() error {
	if s.state == stateDisconnected && s.client == nil && s.sshConn == nil {
		return nil
	}
	var err error
	if s.client != nil {
		err = s.client.Close()
		s.client = nil
	}
	if s.sshConn != nil {
		if cerr := s.sshConn.Close(); err == nil {
			err = cerr
		}
		s.sshConn = nil
	}
	s.state = stateDisconnected
	return err
}

func (s *SFTPSession) CurrentDir() string {
	if s.currentDir == "" {
		return "/"
	}
	return s.currentDir
}

func (s *SFTPSession) resolve(p string) string {
	if path.IsAbs(p) {
		return p
	}
	return path.Join(s.CurrentDir(), p)
}

// ChangeDir records the server-resolved form of path after verifying it
// names a directory.
func (s *SFTPSession) ChangeDir(dir string) error {
	if s.state != stateConnected {
		return ErrNotConnected
	}
	resolved, err := s.client.RealPath(s.resolve(dir))
	if err != nil {
		return &RemoteError{Op: "cd", Path: dir, Err: err}
	}
	info, err := s.client.Stat(resolved)
	if err != nil {
		return &RemoteError{Op: "cd", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return &RemoteError{Op: "cd", Path: dir, Err: fmt.Errorf("not a directory")}
	}
	s.currentDir = resolved
	return nil
}

// List reads a directory and normalizes it through the structured tier;
// SFTP always reports typed entries, so there is no legacy fallback here.
func (s *SFTPSession) List(dir string) ([]Entry, error) {
	if s.state != stateConnected {
		return nil, ErrNotConnected
	}
	if dir == "" {
		dir = s.CurrentDir()
	}
	infos, err := s.client.ReadDir(s.resolve(dir))
	if err != nil {
		return nil, &RemoteError{Op: "list", Path: dir, Err: err}
	}
	records := make([]Record, 0, len(infos))
	for _, fi := range infos {
		r := Record{
			Name:   fi.Name(),
			Type:   "file",
			Size:   strconv.FormatInt(fi.Size(), 10),
			Modify: fi.ModTime().UTC().Format("20060102150405"),
		}
		if fi.IsDir() {
			r.Type = "dir"
		}
		records = append(records, r)
	}
	return NormalizeStructured(records), nil
}

func (s *SFTPSession) Download(remotePath, localPath string, opts DownloadOptions) error {
	if s.state != stateConnected {
		return ErrNotConnected
	}

	var total int64 = -1
	if info, err := s.client.Stat(s.resolve(remotePath)); err == nil {
		total = info.Size()
	}

	src, err := s.client.Open(s.resolve(remotePath))
	if err != nil {
		return &TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: err}
	}
	defer src.Close()
	if opts.ResumeOffset > 0 {
		if _, err := src.Seek(opts.ResumeOffset, io.SeekStart); err != nil {
			return &TransferError{Remote: remotePath, Local: localPath, Done: opts.ResumeOffset, Err: err}
		}
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

	done, copyErr := copyBlocks(f, src, opts.BlockSize, opts.ResumeOffset, total, opts.Progress)
	closeErr := f.Close()
	if copyErr != nil {
		return &TransferError{Remote: remotePath, Local: localPath, Done: done, Err: copyErr}
	}
	if closeErr != nil {
		return &TransferError{Remote: remotePath, Local: localPath, Done: done, Err: closeErr}
	}
	return nil
}
