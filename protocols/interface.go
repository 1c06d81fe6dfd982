package protocols

// EntryKind classifies a remote directory entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
	// KindParent is the synthetic "go up" entry prepended to every
	// listing. It is always first and never reported by the server.
	KindParent
)

func (k EntryKind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindParent:
		return "up"
	default:
		return "file"
	}
}

// Entry is one remote directory item.
type Entry struct {
	Name string
	Kind EntryKind
	// Size in bytes, meaningful only for KindFile.
	Size uint64
	// Modified is the server-native timestamp string. Its format depends
	// on which listing mode produced it and it may be empty.
	Modified string
}

// ProgressFunc receives transfer progress after every block. done is the
// total number of bytes written locally so far (including any resume
// offset); total is the remote size, or negative when unknown. Calls are
// synchronous on the goroutine running the download, with strictly
// increasing done values.
type ProgressFunc func(done, total int64)

// DefaultBlockSize is the download block size used when DownloadOptions
// leaves BlockSize unset.
const DefaultBlockSize = 64 * 1024

// DownloadOptions tunes a single Download call.
type DownloadOptions struct {
	// BlockSize is the read granularity; <= 0 means DefaultBlockSize.
	BlockSize int
	// ResumeOffset > 0 appends to the local file and asks the server to
	// restart the transfer at that byte offset.
	ResumeOffset int64
	Progress     ProgressFunc
}

// Session is a single authenticated connection to a remote file server.
// A session is created disconnected; Connect establishes exactly one live
// connection (tearing down any previous one first). Sessions are not safe
// for concurrent operations: callers serialize calls per session.
type Session interface {
	Connect() error
	// Close releases the connection. Closing an already-closed session
	// is a no-op.
	Close() error
	// CurrentDir returns the last confirmed working path ("/" before the
	// first successful Connect).
	CurrentDir() string
	ChangeDir(path string) error
	// List returns the normalized listing of path, or of the current
	// directory when path is empty.
	List(path string) ([]Entry, error)
	Download(remotePath, localPath string, opts DownloadOptions) error
}
