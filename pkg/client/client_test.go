package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/assessment-engine/internal/models"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{"success": status < 400}
	if data != nil {
		resp["data"] = data
	}
	if code != "" {
		resp["error"] = map[string]string{"code": code, "message": message}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestStartAndSubmit(t *testing.T) {
	deadline := time.Date(2026, 5, 1, 10, 44, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "exam", r.Header.Get("X-SafeExamBrowser-Key"))

		switch r.URL.Path {
		case "/api/v1/assessments/start":
			writeEnvelope(w, http.StatusOK, models.StartSessionResponse{
				SessionID: "s-1",
				Step:      models.Step1,
				Questions: []models.QuestionPublic{{ID: "q-1", Level: models.LevelA1, Options: []string{"a", "b"}}},
				Deadline:  deadline,
			}, "", "")
		case "/api/v1/assessments/s-1/submit":
			var req models.SubmitSessionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []models.Answer{{QuestionID: "q-1", Answer: "a"}}, req.Answers)
			writeEnvelope(w, http.StatusOK, models.SubmitSessionResponse{Score: 75, LevelAchieved: models.LevelA2, UnlocksNextStep: true}, "", "")
		default:
			writeEnvelope(w, http.StatusNotFound, nil, "not_found", "no route")
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithHeader("X-SafeExamBrowser-Key", "exam"))
	ctx := context.Background()

	started, err := c.StartAssessment(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s-1", started.SessionID)
	assert.True(t, deadline.Equal(started.Deadline))
	require.Len(t, started.Questions, 1)

	result, err := c.SubmitAssessment(ctx, started.SessionID, []models.Answer{{QuestionID: "q-1", Answer: "a"}})
	require.NoError(t, err)
	assert.Equal(t, 75.0, result.Score)
	assert.True(t, result.UnlocksNextStep)
}

func TestAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/assessments/start":
			writeEnvelope(w, http.StatusConflict, nil, "conflict", "an assessment is already in progress")
		case "/health":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")

	_, err := c.StartAssessment(context.Background())
	require.Error(t, err)
	assert.True(t, IsCode(err, "conflict"))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	err = c.Health(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestMyCertification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, models.CertificationResponse{
			HighestLevel: models.LevelB2,
			History:      []*models.Session{{ID: "s-2", Step: models.Step2}},
		}, "", "")
	}))
	defer srv.Close()

	cert, err := NewClient(srv.URL, "tok").MyCertification(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.LevelB2, cert.HighestLevel)
	require.Len(t, cert.History, 1)
	assert.Equal(t, models.Step2, cert.History[0].Step)
}

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/refresh", r.URL.Path)

		var req models.RefreshRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.RefreshToken != "old-refresh" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "unauthorized", "the provided refresh token is not valid")
			return
		}
		writeEnvelope(w, http.StatusOK, models.TokenResponse{AccessToken: "a2", RefreshToken: "r2", TokenType: "Bearer"}, "", "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ctx := context.Background()

	tokens, err := c.RefreshToken(ctx, "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "a2", tokens.AccessToken)
	assert.Equal(t, "r2", tokens.RefreshToken)

	_, err = c.RefreshToken(ctx, "stale")
	require.Error(t, err)
	assert.True(t, IsCode(err, "unauthorized"))
}
