package core

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// History records which remote archives have already been fetched, so a
// scheduled watch does not download them again. Persisted as JSON.
type History struct {
	Records map[string]time.Time `json:"records"`
	path    string
	mu      sync.RWMutex
}

func NewHistory(path string) *History {
	return &History{
		Records: make(map[string]time.Time),
		path:    path,
	}
}

// Load reads the history file. A missing file is not an error; the
// history just starts empty.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &h.Records)
}

func (h *History) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.MarshalIndent(h.Records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.path, data, 0o644)
}

func (h *History) Add(remotePath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Records[remotePath] = time.Now()
}

func (h *History) Has(remotePath string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.Records[remotePath]
	return ok
}

func (h *History) Remove(remotePath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.Records, remotePath)
}
