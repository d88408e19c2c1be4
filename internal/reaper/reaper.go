// Package reaper prunes jobs that have sat idle in the store longer than
// the configured retention.
package reaper

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zsprackett/trainwatch/internal/db"
	"github.com/zsprackett/trainwatch/internal/events"
)

type Reaper struct {
	db        *db.DB
	retention time.Duration
	interval  time.Duration
	stop      chan struct{}
	wg        sync.WaitGroup
	now       func() time.Time
	events    events.Broadcaster
	logger    *slog.Logger
}

// New returns a Reaper that sweeps every two minutes. bc may be nil.
func New(store *db.DB, retention time.Duration, bc events.Broadcaster, logger *slog.Logger) *Reaper {
	return &Reaper{
		db:        store,
		retention: retention,
		interval:  2 * time.Minute,
		stop:      make(chan struct{}),
		now:       time.Now,
		events:    bc,
		logger:    logger,
	}
}

// NewWithClock creates a Reaper with an injectable clock. Used in tests.
func NewWithClock(store *db.DB, retention time.Duration, bc events.Broadcaster, logger *slog.Logger, now func() time.Time) *Reaper {
	r := New(store, retention, bc, logger)
	r.now = now
	return r
}

func (r *Reaper) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *Reaper) Stop() {
	close(r.stop)
	r.wg.Wait()
}

// RunOnce runs a single sweep synchronously and returns how many jobs it
// removed.
func (r *Reaper) RunOnce() int {
	return r.sweep()
}

func (r *Reaper) sweep() int {
	if r.retention <= 0 {
		return 0
	}
	stale, err := r.db.StaleJobs(r.now().Add(-r.retention))
	if err != nil {
		r.logger.Warn("reaper: load stale jobs failed", "err", err)
		return 0
	}
	removed := 0
	for _, j := range stale {
		if err := r.db.DeleteJob(j.JobID); err != nil {
			r.logger.Warn("reaper: delete failed", "job", j.JobID, "err", err)
			continue
		}
		removed++
		r.logger.Info("reaper: pruned job", "job", j.JobID, "status", j.Status, "idle_since", j.UpdatedAt)
		if r.events != nil {
			r.events.Broadcast(events.FromSnapshot(events.TypeJobPruned, j.Snapshot))
		}
	}
	return removed
}
