// Package cleanup closes assessment sessions that were abandoned past their deadline.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/assessment-engine/internal/models"
)

// Finder lists overdue in-progress sessions
type Finder interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Session, error)
}

// Expirer completes one overdue session
type Expirer interface {
	ExpireSession(ctx context.Context, session *models.Session) error
}

// Reaper periodically expires abandoned sessions so the candidate's
// in-progress slot is released and the attempt is recorded with a zero score
type Reaper struct {
	finder    Finder
	expirer   Expirer
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewReaper creates a new cleanup worker
func NewReaper(finder Finder, expirer Expirer, interval time.Duration, batchSize int) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Reaper{
		finder:    finder,
		expirer:   expirer,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Start begins the cleanup worker in a goroutine
func (r *Reaper) Start(ctx context.Context) {
	go r.run(ctx)
}

// run is the main loop for the cleanup worker
func (r *Reaper) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on start
	r.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires one batch of overdue sessions and returns how many it closed
func (r *Reaper) Sweep(ctx context.Context) int {
	slog.Debug("running cleanup cycle")

	expired, err := r.finder.ListExpired(ctx, r.now().UTC(), r.batchSize)
	if err != nil {
		slog.Error("failed to list expired sessions", "error", err)
		return 0
	}

	if len(expired) == 0 {
		slog.Debug("no expired sessions found")
		return 0
	}

	slog.Info("found expired sessions", "count", len(expired))

	closed := 0
	for _, s := range expired {
		if err := r.expirer.ExpireSession(ctx, s); err != nil {
			slog.Error("failed to expire session",
				"error", err,
				"session_id", s.ID,
				"candidate_id", s.CandidateID,
			)
			continue
		}
		closed++
	}

	return closed
}
