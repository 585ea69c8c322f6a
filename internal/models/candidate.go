package models

import (
	"errors"
	"fmt"
	"time"
)

// Role is the access role of a directory user
type Role string

const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
)

// ParseRole validates a role name. An empty name is a student.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case "":
		return RoleStudent, nil
	case RoleStudent, RoleAdmin, RoleSupervisor:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// CandidateStatus is the state of a candidate's lockout state machine.
// The only transition is active -> locked.
type CandidateStatus string

const (
	CandidateActive CandidateStatus = "active"
	CandidateLocked CandidateStatus = "locked" // failed step 1, permanent
)

// ErrCandidateLocked is returned when locking an already locked candidate
var ErrCandidateLocked = errors.New("candidate is already locked")

// Candidate is a user of the directory who may sit assessments
type Candidate struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Role       Role            `json:"role"`
	IsVerified bool            `json:"is_verified"`
	Status     CandidateStatus `json:"status"`
	LockedAt   *time.Time      `json:"locked_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// FailedStep1 reports whether the candidate is permanently locked out
func (c *Candidate) FailedStep1() bool {
	return c.Status == CandidateLocked
}

// Lock moves the candidate from active to locked
func (c *Candidate) Lock(at time.Time) error {
	if c.Status == CandidateLocked {
		return ErrCandidateLocked
	}
	c.Status = CandidateLocked
	c.LockedAt = &at
	return nil
}
