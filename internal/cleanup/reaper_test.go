package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/assessment-engine/internal/assessment"
	"github.com/terra-clan/assessment-engine/internal/models"
	"github.com/terra-clan/assessment-engine/internal/storage"
)

func inProgress(t *testing.T, repo *storage.MemoryRepository, start time.Time) *models.Session {
	t.Helper()

	c := &models.Candidate{Email: uuid.New().String() + "@example.com"}
	require.NoError(t, repo.CreateCandidate(context.Background(), c))

	end := start.Add(44 * time.Minute)
	s := &models.Session{
		ID:          uuid.New().String(),
		CandidateID: c.ID,
		Step:        models.Step1,
		Status:      models.SessionInProgress,
		StartTime:   start,
		EndTime:     &end,
		CreatedAt:   start,
	}
	require.NoError(t, repo.CreateSession(context.Background(), s))
	return s
}

func TestSweepExpiresOverdueSessions(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	engine := assessment.NewEngine(repo, assessment.Config{})

	overdue := inProgress(t, repo, time.Now().Add(-2*time.Hour))
	running := inProgress(t, repo, time.Now())

	reaper := NewReaper(repo, engine, time.Minute, 10)
	assert.Equal(t, 1, reaper.Sweep(ctx))

	got, err := repo.GetSession(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, got.Status)
	assert.Equal(t, models.OutcomeExpired, got.Outcome)
	assert.Equal(t, 0.0, got.ScoreValue())

	got, err = repo.GetSession(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, got.Status)

	assert.Equal(t, 0, reaper.Sweep(ctx))
}

type failingExpirer struct {
	mu    sync.Mutex
	calls int
}

func (f *failingExpirer) ExpireSession(context.Context, *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 {
		return errors.New("database unavailable")
	}
	return nil
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	repo := storage.NewMemoryRepository()
	inProgress(t, repo, time.Now().Add(-2*time.Hour))
	inProgress(t, repo, time.Now().Add(-3*time.Hour))

	expirer := &failingExpirer{}
	reaper := NewReaper(repo, expirer, time.Minute, 10)

	assert.Equal(t, 1, reaper.Sweep(context.Background()))
	assert.Equal(t, 2, expirer.calls)
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := storage.NewMemoryRepository()
	s := inProgress(t, repo, time.Now().Add(-2*time.Hour))

	reaper := NewReaper(repo, assessment.NewEngine(repo, assessment.Config{}), 10*time.Millisecond, 10)
	reaper.Start(ctx)

	assert.Eventually(t, func() bool {
		got, err := repo.GetSession(context.Background(), s.ID)
		return err == nil && got.IsCompleted()
	}, time.Second, 10*time.Millisecond)

	cancel()
}
