package backup

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically archives uploaded backup files older than a
// retention cutoff. Safe to run alongside other processes touching the
// same store since Archive only removes files already marked uploaded.
type Reaper struct {
	store     *Store
	retention time.Duration
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper builds a Reaper that archives files older than retention,
// checking every interval.
func NewReaper(store *Store, retention, interval time.Duration) *Reaper {
	return &Reaper{store: store, retention: retention, interval: interval}
}

// Start launches the background archival loop.
func (r *Reaper) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)

	slog.Info("backup reaper started", "retention", r.retention, "interval", r.interval)
}

// Stop signals the archival loop to exit and waits for it to finish.
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("backup reaper stopped")
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	r.archiveOnce()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.archiveOnce()
		}
	}
}

func (r *Reaper) archiveOnce() {
	removed, err := r.store.Archive(r.retention)
	if err != nil {
		slog.Error("backup reaper: archive failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("backup reaper: archived uploaded files", "count", removed)
	}
}
