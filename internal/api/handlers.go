package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/assessment-engine/internal/assessment"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondEngineError maps an engine error kind to a status code. Unknown
// errors are logged and reported as internal without detail.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, assessment.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, assessment.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, assessment.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, assessment.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, assessment.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, assessment.ErrServerConfig):
		status = http.StatusInternalServerError
	default:
		slog.Error("failed to "+op, "error", err, "request_id", requestID(r))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+op)
		return
	}

	respondError(w, status, assessment.KindOf(err), err.Error())
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.health.Report(r.Context())
	if !status.Ready {
		for name, state := range status.Services {
			if state != "ok" {
				slog.Warn("dependency not ready", "service", name, "error", state)
			}
		}
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, status)
}
