package models

import (
	"time"
)

// SessionStatus represents the current state of an assessment session
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress" // Started, timer ticking
	SessionCompleted  SessionStatus = "completed"   // Graded or expired
)

// SessionOutcome tells how a completed session was closed
type SessionOutcome string

const (
	OutcomeNone    SessionOutcome = ""
	OutcomeGraded  SessionOutcome = "graded"
	OutcomeExpired SessionOutcome = "expired" // Deadline breached, zero score
)

// Session is one timed exam attempt by a candidate at a given step
type Session struct {
	ID            string         `json:"id"`
	CandidateID   string         `json:"candidate_id"`
	Step          Step           `json:"step"`
	Status        SessionStatus  `json:"status"`
	Outcome       SessionOutcome `json:"outcome,omitempty"`
	Score         *float64       `json:"score,omitempty"`
	LevelAchieved *Level         `json:"level_achieved,omitempty"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       *time.Time     `json:"end_time,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// IsCompleted returns true if the session is in its final state
func (s *Session) IsCompleted() bool {
	return s.Status == SessionCompleted
}

// IsExpired checks whether the deadline has passed at the given instant
func (s *Session) IsExpired(now time.Time) bool {
	if s.EndTime == nil {
		return false
	}
	return now.After(*s.EndTime)
}

// TimeRemaining returns the duration until the deadline (0 if passed or unset)
func (s *Session) TimeRemaining(now time.Time) time.Duration {
	if s.EndTime == nil {
		return 0
	}
	remaining := s.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ScoreValue returns the score, 0 when not graded
func (s *Session) ScoreValue() float64 {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}

// Completion carries the single write that moves a session to completed
type Completion struct {
	SessionID     string
	Score         float64
	LevelAchieved *Level
	Outcome       SessionOutcome
	// EndTime replaces the recorded deadline when set
	EndTime     *time.Time
	CompletedAt time.Time
	// LockCandidate moves the owner to locked in the same commit
	LockCandidate string
}

// Answer is one submitted (question, selected option) pair
type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// StartSessionResponse is returned after starting a session
type StartSessionResponse struct {
	SessionID     string           `json:"session_id"`
	Step          Step             `json:"step"`
	Questions     []QuestionPublic `json:"questions"`
	Deadline      time.Time        `json:"deadline"`
	TimeRemaining int64            `json:"time_remaining_seconds"`
}

// SubmitSessionRequest represents a submission of answers
type SubmitSessionRequest struct {
	Answers []Answer `json:"answers"`
}

// SubmitSessionResponse holds the grading result
type SubmitSessionResponse struct {
	Score           float64 `json:"score"`
	LevelAchieved   Level   `json:"level_achieved"`
	UnlocksNextStep bool    `json:"unlocks_next_step"`
}

// RefreshRequest exchanges a refresh token for a new token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries a token pair
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// CertificationResponse reports the best level reached and the history
type CertificationResponse struct {
	HighestLevel Level      `json:"highest_level"`
	History      []*Session `json:"history"`
}
