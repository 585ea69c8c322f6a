package assessment

import "errors"

// Error kinds. Every error returned by the engine wraps exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrServerConfig = errors.New("server configuration error")
	ErrExpired      = errors.New("expired")
)

// Specific errors
var (
	ErrCandidateNotFound = newError(ErrNotFound, "candidate not found")
	ErrSessionNotFound   = newError(ErrNotFound, "assessment not found")

	ErrLocked             = newError(ErrForbidden, "you are not eligible to start a new assessment")
	ErrNotUnlocked        = newError(ErrForbidden, "you have not unlocked the next assessment step")
	ErrFinalStepCompleted = newError(ErrForbidden, "the final assessment step has already been completed")
	ErrNotOwner           = newError(ErrForbidden, "you are not authorized to submit this assessment")

	ErrSessionInProgress = newError(ErrConflict, "an assessment is already in progress")
	ErrAlreadyCompleted  = newError(ErrConflict, "this assessment has already been completed")

	ErrQuestionBankExhausted = newError(ErrServerConfig, "not enough questions in the database to start the assessment")

	ErrDeadlineExceeded = newError(ErrExpired, "time has expired for this assessment")

	ErrMissingSessionID = newError(ErrValidation, "assessment id is required")
)

// Error is an engine error with a stable kind
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

// Unwrap exposes the kind to errors.Is
func (e *Error) Unwrap() error {
	return e.kind
}

// KindOf returns the stable kind code of err, "internal_error" for unknown errors
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrServerConfig):
		return "server_config"
	case errors.Is(err, ErrExpired):
		return "deadline_exceeded"
	default:
		return "internal_error"
	}
}
