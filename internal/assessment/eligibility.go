package assessment

import (
	"context"
	"fmt"

	"github.com/terra-clan/assessment-engine/internal/models"
	"github.com/terra-clan/assessment-engine/internal/scoring"
	"github.com/terra-clan/assessment-engine/internal/storage"
)

// Reason explains an eligibility decision
type Reason string

const (
	ReasonFirstAttempt       Reason = "first_attempt"        // No completed session
	ReasonUnlocked           Reason = "unlocked"             // Previous step unlocked the next
	ReasonRetake             Reason = "retake"               // Final step repeated, when enabled
	ReasonLocked             Reason = "locked"               // Failed step 1
	ReasonNotUnlocked        Reason = "not_unlocked"         // Previous step did not unlock
	ReasonFinalStepCompleted Reason = "final_step_completed" // Step 3 completed, graded or expired
)

// Decision is the result of an eligibility check
type Decision struct {
	Allowed  bool        `json:"allowed"`
	NextStep models.Step `json:"next_step,omitempty"`
	Reason   Reason      `json:"reason"`
}

// Err returns the denial error for a disallowed decision
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonLocked:
		return ErrLocked
	case ReasonFinalStepCompleted:
		return ErrFinalStepCompleted
	default:
		return ErrNotUnlocked
	}
}

// Gate decides whether a candidate may start a new session and at which step
type Gate struct {
	sessions         storage.SessionStore
	allowStep3Retake bool
}

// NewGate creates an eligibility gate
func NewGate(sessions storage.SessionStore, allowStep3Retake bool) *Gate {
	return &Gate{sessions: sessions, allowStep3Retake: allowStep3Retake}
}

// Check evaluates the candidate's lockout state and most recent completed
// session. The previous outcome is recomputed from its step and score.
func (g *Gate) Check(ctx context.Context, c *models.Candidate) (Decision, error) {
	if c.FailedStep1() {
		return Decision{Reason: ReasonLocked}, nil
	}

	last, err := g.sessions.LatestCompleted(ctx, c.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to get latest completed session: %w", err)
	}

	if last == nil {
		return Decision{Allowed: true, NextStep: models.Step1, Reason: ReasonFirstAttempt}, nil
	}

	if last.Step >= models.MaxStep {
		if g.allowStep3Retake {
			return Decision{Allowed: true, NextStep: models.MaxStep, Reason: ReasonRetake}, nil
		}
		return Decision{Reason: ReasonFinalStepCompleted}, nil
	}

	result := scoring.Evaluate(last.Step, last.ScoreValue())
	if result.UnlocksNextStep {
		return Decision{Allowed: true, NextStep: last.Step + 1, Reason: ReasonUnlocked}, nil
	}

	return Decision{Reason: ReasonNotUnlocked}, nil
}
