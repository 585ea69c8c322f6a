package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/terra-clan/assessment-engine/internal/models"
)

const maxSubmitBody = 1 << 20

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	decision, err := s.engine.Eligibility(r.Context(), claims.CandidateID)
	if err != nil {
		respondEngineError(w, r, err, "check eligibility")
		return
	}

	respondJSON(w, http.StatusOK, decision)
}

func (s *Server) handleStartAssessment(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	started, err := s.engine.StartSession(r.Context(), claims.CandidateID)
	if err != nil {
		respondEngineError(w, r, err, "start assessment")
		return
	}

	respondJSON(w, http.StatusOK, models.StartSessionResponse{
		SessionID: started.Session.ID,
		Step:      started.Session.Step,
		Questions:     started.Questions,
		Deadline:      started.Deadline,
		TimeRemaining: int64(started.TimeRemaining / time.Second),
	})
}

func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "assessment id is required")
		return
	}

	var req models.SubmitSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Answers == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "answers is required")
		return
	}
	for _, a := range req.Answers {
		if a.QuestionID == "" {
			respondError(w, http.StatusBadRequest, "validation_error", "every answer needs a question_id")
			return
		}
	}

	result, err := s.engine.SubmitSession(r.Context(), id, claims.CandidateID, req.Answers)
	if err != nil {
		respondEngineError(w, r, err, "submit assessment")
		return
	}

	respondJSON(w, http.StatusOK, models.SubmitSessionResponse{
		Score:           result.Score,
		LevelAchieved:   result.LevelAchieved,
		UnlocksNextStep: result.UnlocksNextStep,
	})
}

func (s *Server) handleMyCertification(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	cert, err := s.engine.Certification(r.Context(), claims.CandidateID)
	if err != nil {
		respondEngineError(w, r, err, "get certification")
		return
	}

	respondJSON(w, http.StatusOK, cert)
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
