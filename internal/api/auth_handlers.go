package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/terra-clan/assessment-engine/internal/assessment"
	"github.com/terra-clan/assessment-engine/internal/models"
)

const maxRefreshBody = 16 << 10

// handleRefresh trades a valid refresh token for a new token pair. The
// candidate is re-read so the new access token carries the current role.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRefreshBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "refresh_token is required")
		return
	}

	claims, err := s.issuer.ValidateRefresh(req.RefreshToken)
	if err != nil {
		slog.Warn("invalid refresh token", "error", err, "remote_addr", r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, "unauthorized", "the provided refresh token is not valid")
		return
	}

	c, err := s.engine.Candidate(r.Context(), claims.CandidateID)
	if err != nil {
		if errors.Is(err, assessment.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "unauthorized", "the provided refresh token is not valid")
			return
		}
		respondEngineError(w, r, err, "refresh token")
		return
	}

	access, err := s.issuer.IssueAccess(c)
	if err != nil {
		slog.Error("failed to issue access token", "candidate_id", c.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}
	refresh, err := s.issuer.IssueRefresh(c)
	if err != nil {
		slog.Error("failed to issue refresh token", "candidate_id", c.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, models.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	})
}
