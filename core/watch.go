package core

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sync"

	"github.com/robfig/cron/v3"

	"rarfetch/protocols"
)

// WatchTask describes one scheduled poll of a remote directory.
type WatchTask struct {
	RemoteDir string
	// Pattern filters file names; empty matches everything.
	Pattern string
	// Schedule is a cron expression (robfig/cron syntax).
	Schedule string
}

// Watcher polls a remote directory on a cron schedule and fetches every
// matching file it has not fetched before. Fetched paths are recorded in
// the history so restarts do not re-download them.
type Watcher struct {
	fetcher *Fetcher
	history *History
	task    WatchTask
	pattern *regexp.Regexp
	cron    *cron.Cron

	// runMu serializes polls: the session underneath the fetcher allows
	// only one in-flight operation, and cron fires each tick in its own
	// goroutine. A tick that lands while a fetch is still running is
	// skipped, not queued.
	runMu sync.Mutex
}

func NewWatcher(fetcher *Fetcher, history *History, task WatchTask) (*Watcher, error) {
	pattern, err := regexp.Compile(task.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", task.Pattern, err)
	}
	return &Watcher{
		fetcher: fetcher,
		history: history,
		task:    task,
		pattern: pattern,
		cron:    cron.New(),
	}, nil
}

// Start schedules the task and triggers an immediate first run.
func (w *Watcher) Start() error {
	_, err := w.cron.AddFunc(w.task.Schedule, func() {
		w.runOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", w.task.Schedule, err)
	}

	go w.runOnce(context.Background())
	w.cron.Start()
	slog.Info("watch started", "dir", w.task.RemoteDir, "schedule", w.task.Schedule)
	return nil
}

// Stop cancels the schedule and persists the history. In-flight fetches
// run to completion.
func (w *Watcher) Stop() {
	w.cron.Stop()
	if err := w.history.Save(); err != nil {
		slog.Warn("failed to save history", "err", err)
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	if !w.runMu.TryLock() {
		slog.Warn("previous poll still running, skipping", "dir", w.task.RemoteDir)
		return
	}
	defer w.runMu.Unlock()

	entries, err := w.fetcher.Session.List(w.task.RemoteDir)
	if err != nil {
		slog.Error("listing failed", "dir", w.task.RemoteDir, "err", err)
		return
	}

	for _, entry := range entries {
		if entry.Kind != protocols.KindFile || !w.pattern.MatchString(entry.Name) {
			continue
		}
		remotePath := path.Join(w.task.RemoteDir, entry.Name)
		if w.history.Has(remotePath) {
			continue
		}
		if _, err := w.fetcher.Fetch(ctx, remotePath); err != nil {
			slog.Error("fetch failed", "remote", remotePath, "err", err)
			continue
		}
		w.history.Add(remotePath)
		if err := w.history.Save(); err != nil {
			slog.Warn("failed to save history", "err", err)
		}
	}
}
