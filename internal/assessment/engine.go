// Package assessment implements the exam session lifecycle: eligibility,
// start, submission, grading and certification history.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/assessment-engine/internal/metrics"
	"github.com/terra-clan/assessment-engine/internal/models"
	"github.com/terra-clan/assessment-engine/internal/notify"
	"github.com/terra-clan/assessment-engine/internal/scoring"
	"github.com/terra-clan/assessment-engine/internal/storage"
)

// Defaults
const (
	DefaultExamSize     = 44
	DefaultQuestionTime = time.Minute
)

// Config holds exam parameters
type Config struct {
	ExamSize         int
	QuestionTime     time.Duration
	AllowStep3Retake bool
}

// Duration returns the total time allowed for one session
func (c Config) Duration() time.Duration {
	return time.Duration(c.ExamSize) * c.QuestionTime
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics records lifecycle events on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithNotifier sets the result notifier
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// Engine runs assessment sessions
type Engine struct {
	candidates storage.CandidateStore
	questions  storage.QuestionBank
	sessions   storage.SessionStore
	gate       *Gate
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	cfg        Config
	now        func() time.Time
}

// NewEngine creates an engine over the given repository
func NewEngine(repo storage.Repository, cfg Config, opts ...Option) *Engine {
	if cfg.ExamSize <= 0 {
		cfg.ExamSize = DefaultExamSize
	}
	if cfg.QuestionTime <= 0 {
		cfg.QuestionTime = DefaultQuestionTime
	}

	e := &Engine{
		candidates: repo,
		questions:  repo,
		sessions:   repo,
		gate:       NewGate(repo, cfg.AllowStep3Retake),
		notifier:   notify.LogNotifier{},
		cfg:        cfg,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// StartResult is returned by StartSession
type StartResult struct {
	Session   *models.Session
	Questions     []models.QuestionPublic
	Deadline      time.Time
	TimeRemaining time.Duration
}

// SubmitResult is returned by SubmitSession
type SubmitResult struct {
	SessionID       string
	Step            models.Step
	Score           float64
	LevelAchieved   models.Level
	UnlocksNextStep bool
}

// Eligibility reports whether the candidate may start a session now
func (e *Engine) Eligibility(ctx context.Context, candidateID string) (Decision, error) {
	c, err := e.candidate(ctx, candidateID)
	if err != nil {
		return Decision{}, err
	}
	return e.gate.Check(ctx, c)
}

// StartSession checks eligibility, draws the question sample for the next
// step and records an in-progress session with a fixed deadline
func (e *Engine) StartSession(ctx context.Context, candidateID string) (*StartResult, error) {
	c, err := e.candidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	decision, err := e.gate.Check(ctx, c)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		e.metrics.StartDenied(string(decision.Reason))
		slog.Info("assessment start denied", "candidate_id", c.ID, "reason", decision.Reason)
		return nil, decision.Err()
	}

	step := decision.NextStep
	questions, err := e.questions.SampleByLevels(ctx, step.Levels(), e.cfg.ExamSize)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}
	if len(questions) < e.cfg.ExamSize {
		slog.Error("question bank exhausted",
			"step", step,
			"available", len(questions),
			"required", e.cfg.ExamSize,
		)
		return nil, ErrQuestionBankExhausted
	}

	now := e.now().UTC()
	deadline := now.Add(e.cfg.Duration())

	session := &models.Session{
		ID:          uuid.New().String(),
		CandidateID: c.ID,
		Step:        step,
		Status:      models.SessionInProgress,
		StartTime:   now,
		EndTime:     &deadline,
		CreatedAt:   now,
	}

	if err := e.sessions.CreateSession(ctx, session); err != nil {
		if errors.Is(err, storage.ErrSessionInProgress) {
			return nil, ErrSessionInProgress
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	e.metrics.SessionStarted(int(step))
	slog.Info("assessment started",
		"session_id", session.ID,
		"candidate_id", c.ID,
		"step", step,
		"deadline", deadline,
	)

	return &StartResult{
		Session:       session,
		Questions:     questions,
		Deadline:      deadline,
		TimeRemaining: session.TimeRemaining(now),
	}, nil
}

// SubmitSession grades answers for an in-progress session owned by the
// candidate. A submission after the deadline completes the session with a
// zero score and returns ErrDeadlineExceeded.
func (e *Engine) SubmitSession(ctx context.Context, sessionID, candidateID string, answers []models.Answer) (*SubmitResult, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	session, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.CandidateID != candidateID {
		return nil, ErrNotOwner
	}
	if session.IsCompleted() {
		return nil, ErrAlreadyCompleted
	}

	now := e.now().UTC()
	if session.IsExpired(now) {
		if err := e.expire(ctx, session, now); err != nil {
			return nil, err
		}
		return nil, ErrDeadlineExceeded
	}

	answers = normalizeAnswers(answers)
	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.QuestionID)
	}
	correct, err := e.questions.FindCorrectAnswers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load correct answers: %w", err)
	}

	matches := Grade(answers, correct)
	if matches > e.cfg.ExamSize {
		matches = e.cfg.ExamSize
	}
	score := scoring.Percentage(matches, e.cfg.ExamSize)
	result := scoring.Evaluate(session.Step, score)

	level := result.LevelAchieved
	completion := models.Completion{
		SessionID:     session.ID,
		Score:         score,
		LevelAchieved: &level,
		Outcome:       models.OutcomeGraded,
		EndTime:       &now,
		CompletedAt:   now,
	}
	if result.Failed {
		completion.LockCandidate = session.CandidateID
	}

	if err := e.sessions.CompleteSession(ctx, completion); err != nil {
		if errors.Is(err, storage.ErrSessionCompleted) {
			return nil, ErrAlreadyCompleted
		}
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	e.metrics.SessionCompleted(int(session.Step), string(models.OutcomeGraded), score)
	slog.Info("assessment graded",
		"session_id", session.ID,
		"candidate_id", session.CandidateID,
		"step", session.Step,
		"score", score,
		"level", level,
		"unlocks_next_step", result.UnlocksNextStep,
		"locked", result.Failed,
	)

	e.notifyResult(ctx, session, score, level)

	return &SubmitResult{
		SessionID:       session.ID,
		Step:            session.Step,
		Score:           score,
		LevelAchieved:   level,
		UnlocksNextStep: result.UnlocksNextStep,
	}, nil
}

// ExpireSession completes an overdue in-progress session with a zero score.
// It is a no-op if the session was completed concurrently.
func (e *Engine) ExpireSession(ctx context.Context, session *models.Session) error {
	now := e.now().UTC()
	if !session.IsExpired(now) {
		return nil
	}

	err := e.expire(ctx, session, now)
	if errors.Is(err, ErrAlreadyCompleted) {
		return nil
	}
	return err
}

func (e *Engine) expire(ctx context.Context, session *models.Session, now time.Time) error {
	completion := models.Completion{
		SessionID:   session.ID,
		Score:       0,
		Outcome:     models.OutcomeExpired,
		CompletedAt: now,
	}

	if err := e.sessions.CompleteSession(ctx, completion); err != nil {
		if errors.Is(err, storage.ErrSessionCompleted) {
			return ErrAlreadyCompleted
		}
		return fmt.Errorf("failed to expire session: %w", err)
	}

	e.metrics.SessionCompleted(int(session.Step), string(models.OutcomeExpired), 0)
	slog.Info("assessment expired",
		"session_id", session.ID,
		"candidate_id", session.CandidateID,
		"step", session.Step,
	)
	return nil
}

// Certification returns the candidate's highest achieved level and
// completed session history, newest first
func (e *Engine) Certification(ctx context.Context, candidateID string) (*models.CertificationResponse, error) {
	c, err := e.candidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	history, err := e.sessions.ListCompleted(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	highest := models.LevelNotCertified
	for _, s := range history {
		if s.LevelAchieved != nil && s.LevelAchieved.Index() > highest.Index() {
			highest = *s.LevelAchieved
		}
	}

	if history == nil {
		history = []*models.Session{}
	}

	return &models.CertificationResponse{
		HighestLevel: highest,
		History:      history,
	}, nil
}

// Candidate returns a directory user, ErrCandidateNotFound if absent
func (e *Engine) Candidate(ctx context.Context, id string) (*models.Candidate, error) {
	return e.candidate(ctx, id)
}

func (e *Engine) candidate(ctx context.Context, id string) (*models.Candidate, error) {
	c, err := e.candidates.FindCandidateByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	if c == nil {
		return nil, ErrCandidateNotFound
	}
	return c, nil
}

func (e *Engine) notifyResult(ctx context.Context, session *models.Session, score float64, level models.Level) {
	c, err := e.candidates.FindCandidateByID(ctx, session.CandidateID)
	if err != nil || c == nil {
		slog.Warn("result notification skipped", "session_id", session.ID, "error", err)
		return
	}

	if err := e.notifier.Send(ctx, notify.ResultMessage(c, session.ID, score, level)); err != nil {
		slog.Warn("result notification failed", "session_id", session.ID, "error", err)
	}
}
