package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/assessment-engine/internal/models"
)

// Storage errors
var (
	// ErrSessionInProgress is returned when a candidate already owns an
	// in-progress session
	ErrSessionInProgress = errors.New("candidate already has a session in progress")

	// ErrSessionCompleted is returned when a completion loses the race
	// against another completion of the same session
	ErrSessionCompleted = errors.New("session is already completed")

	// ErrDuplicateEmail is returned when creating a candidate with a taken email
	ErrDuplicateEmail = errors.New("candidate email already exists")
)

// CandidateStore is the user directory consumed by the engine
type CandidateStore interface {
	FindCandidateByID(ctx context.Context, id string) (*models.Candidate, error)
	FindCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error)
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	SaveCandidate(ctx context.Context, c *models.Candidate) error
}

// QuestionBank stores question items tagged by level
type QuestionBank interface {
	// SampleByLevels draws an unbiased random sample of at most count
	// questions whose level is in levels, with correct answers stripped
	SampleByLevels(ctx context.Context, levels []models.Level, count int) ([]models.QuestionPublic, error)

	// FindCorrectAnswers returns question ID -> correct answer for the known ids
	FindCorrectAnswers(ctx context.Context, ids []string) (map[string]string, error)

	InsertQuestions(ctx context.Context, questions []*models.Question) error
	CountByLevel(ctx context.Context) (map[models.Level]int, error)
}

// SessionStore persists assessment attempts
type SessionStore interface {
	// CreateSession inserts an in-progress session. It fails with
	// ErrSessionInProgress if the candidate already has one.
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// LatestCompleted returns the candidate's most recently completed session
	LatestCompleted(ctx context.Context, candidateID string) (*models.Session, error)
	// ListCompleted returns completed sessions, newest first
	ListCompleted(ctx context.Context, candidateID string) ([]*models.Session, error)

	// CompleteSession atomically moves an in-progress session to completed
	// and, if requested, locks the owner in the same commit. It fails with
	// ErrSessionCompleted if the session was not in progress.
	CompleteSession(ctx context.Context, c models.Completion) error

	// ListExpired returns in-progress sessions whose deadline is before now
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Session, error)
}

// Repository defines the full persistence surface
type Repository interface {
	CandidateStore
	QuestionBank
	SessionStore

	// Health
	Ping(ctx context.Context) error
	Close() error
}
