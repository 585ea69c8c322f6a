package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/assessment-engine/internal/assessment"
	"github.com/terra-clan/assessment-engine/internal/auth"
	"github.com/terra-clan/assessment-engine/internal/config"
	"github.com/terra-clan/assessment-engine/internal/health"
	"github.com/terra-clan/assessment-engine/internal/metrics"
	"github.com/terra-clan/assessment-engine/internal/models"
	"github.com/terra-clan/assessment-engine/internal/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type testEnv struct {
	repo     *storage.MemoryRepository
	issuer   *auth.JWTIssuer
	registry *health.Registry
	handler  http.Handler
}

func newTestEnv(t *testing.T, seb config.SEBConfig) *testEnv {
	t.Helper()

	repo := storage.NewMemoryRepository()
	var questions []*models.Question
	for _, level := range models.LevelOrder {
		for i := 0; i < 30; i++ {
			questions = append(questions, &models.Question{
				Competency:    "reading",
				Level:         level,
				Text:          fmt.Sprintf("%s #%d", level, i),
				Options:       []string{"yes", "no"},
				CorrectAnswer: "yes",
			})
		}
	}
	require.NoError(t, repo.InsertQuestions(context.Background(), questions))

	issuer, err := auth.NewJWTIssuer(auth.JWTConfig{Secret: "api-test"})
	require.NoError(t, err)

	registry := health.NewRegistry(time.Second)
	registry.Register("postgres", health.CheckerFunc(repo.Ping))

	engine := assessment.NewEngine(repo, assessment.Config{})
	srv := NewServer(config.ServerConfig{}, engine, issuer, registry, metrics.New(), seb)

	return &testEnv{repo: repo, issuer: issuer, registry: registry, handler: srv.Router()}
}

func (e *testEnv) token(t *testing.T, email string, role models.Role) (string, *models.Candidate) {
	t.Helper()
	c := &models.Candidate{Email: email, Role: role, IsVerified: true}
	require.NoError(t, e.repo.CreateCandidate(context.Background(), c))

	token, err := e.issuer.IssueAccess(c)
	require.NoError(t, err)
	return token, c
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{})

	rec, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	rec, _ = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.registry.Register("redis", health.CheckerFunc(func(context.Context) error { return errors.New("down") }))
	rec, body = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{})
	env.do(t, http.MethodGet, "/health", "", nil)

	rec, _ := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "assessment_http_request_duration_seconds")
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{})

	rec, body := env.do(t, http.MethodPost, "/api/v1/assessments/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body.Error.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/assessments/start", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	adminToken, _ := env.token(t, "admin@example.com", models.RoleAdmin)
	rec, body = env.do(t, http.MethodPost, "/api/v1/assessments/start", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", body.Error.Code)
}

func TestStartAndSubmit(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{})
	token, _ := env.token(t, "student@example.com", models.RoleStudent)

	rec, body := env.do(t, http.MethodPost, "/api/v1/assessments/start", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, string(body.Data), "correct_answer")

	var started models.StartSessionResponse
	require.NoError(t, json.Unmarshal(body.Data, &started))
	assert.Equal(t, models.Step1, started.Step)
	assert.Len(t, started.Questions, 44)
	assert.InDelta(t, (44 * time.Minute).Seconds(), started.TimeRemaining, 5)

	rec, body = env.do(t, http.MethodPost, "/api/v1/assessments/start", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body.Error.Code)

	answers := make([]models.Answer, 0, len(started.Questions))
	for _, q := range started.Questions {
		answers = append(answers, models.Answer{QuestionID: q.ID, Answer: "yes"})
	}

	path := "/api/v1/assessments/" + started.SessionID + "/submit"
	rec, body = env.do(t, http.MethodPost, path, token, models.SubmitSessionRequest{Answers: answers})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.SubmitSessionResponse
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, models.LevelA2, result.LevelAchieved)
	assert.True(t, result.UnlocksNextStep)

	rec, body = env.do(t, http.MethodPost, path, token, models.SubmitSessionRequest{Answers: answers})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body.Error.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/certifications/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cert models.CertificationResponse
	require.NoError(t, json.Unmarshal(body.Data, &cert))
	assert.Equal(t, models.LevelA2, cert.HighestLevel)
	assert.Len(t, cert.History, 1)

	rec, body = env.do(t, http.MethodGet, "/api/v1/assessments/eligibility", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var decision assessment.Decision
	require.NoError(t, json.Unmarshal(body.Data, &decision))
	assert.True(t, decision.Allowed)
	assert.Equal(t, models.Step2, decision.NextStep)
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{})
	token, _ := env.token(t, "v@example.com", models.RoleStudent)

	rec, body := env.do(t, http.MethodPost, "/api/v1/assessments/start", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var started models.StartSessionResponse
	require.NoError(t, json.Unmarshal(body.Data, &started))
	path := "/api/v1/assessments/" + started.SessionID + "/submit"

	rec, body = env.do(t, http.MethodPost, path, token, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", body.Error.Code)

	rec, body = env.do(t, http.MethodPost, path, token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", body.Error.Code)

	rec, _ = env.do(t, http.MethodPost, path, token, `{"answers":[{"answer":"yes"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/assessments/unknown/submit", token, `{"answers":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body.Error.Code)
}

func TestSubmitForeignSession(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{})
	owner, _ := env.token(t, "owner@example.com", models.RoleStudent)
	other, _ := env.token(t, "other@example.com", models.RoleStudent)

	_, body := env.do(t, http.MethodPost, "/api/v1/assessments/start", owner, nil)
	var started models.StartSessionResponse
	require.NoError(t, json.Unmarshal(body.Data, &started))

	rec, _ := env.do(t, http.MethodPost, "/api/v1/assessments/"+started.SessionID+"/submit", other, `{"answers":[]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExpiredSubmission(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{})
	token, c := env.token(t, "late@example.com", models.RoleStudent)

	past := time.Now().UTC().Add(-time.Hour)
	end := past.Add(44 * time.Minute)
	session := &models.Session{
		ID:          "00000000-0000-0000-0000-000000000001",
		CandidateID: c.ID,
		Step:        models.Step1,
		Status:      models.SessionInProgress,
		StartTime:   past,
		EndTime:     &end,
		CreatedAt:   past,
	}
	require.NoError(t, env.repo.CreateSession(context.Background(), session))

	rec, body := env.do(t, http.MethodPost, "/api/v1/assessments/"+session.ID+"/submit", token, `{"answers":[]}`)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "deadline_exceeded", body.Error.Code)
}

func TestExamBrowserHeader(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{Header: "X-SafeExamBrowser-Key", Value: "exam-key"})
	token, _ := env.token(t, "seb@example.com", models.RoleStudent)

	rec, body := env.do(t, http.MethodPost, "/api/v1/assessments/start", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "exam_browser_required", body.Error.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/assessments/start", token, nil, "X-SafeExamBrowser-Key", "exam-key")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Read-only routes stay reachable outside the exam browser
	rec, _ = env.do(t, http.MethodGet, "/api/v1/certifications/me", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartDeniedWhenBankTooSmall(t *testing.T) {
	repo := storage.NewMemoryRepository()
	issuer, err := auth.NewJWTIssuer(auth.JWTConfig{Secret: "api-test"})
	require.NoError(t, err)

	srv := NewServer(config.ServerConfig{}, assessment.NewEngine(repo, assessment.Config{}), issuer, nil, nil, config.SEBConfig{})
	env := &testEnv{repo: repo, issuer: issuer, handler: srv.Router()}
	token, _ := env.token(t, "empty@example.com", models.RoleStudent)

	rec, body := env.do(t, http.MethodPost, "/api/v1/assessments/start", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "server_config", body.Error.Code)
}

func TestRefreshToken(t *testing.T) {
	env := newTestEnv(t, config.SEBConfig{})
	access, c := env.token(t, "refresh@example.com", models.RoleStudent)

	refresh, err := env.issuer.IssueRefresh(c)
	require.NoError(t, err)

	rec, body := env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokens models.TokenResponse
	require.NoError(t, json.Unmarshal(body.Data, &tokens))
	assert.Equal(t, "Bearer", tokens.TokenType)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/assessments/eligibility", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An access token is not a refresh token
	rec, body = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body.Error.Code)

	// Refresh tokens do not authenticate API calls
	rec, _ = env.do(t, http.MethodGet, "/api/v1/assessments/eligibility", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", models.RefreshRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", body.Error.Code)

	ghost := &models.Candidate{ID: "00000000-0000-0000-0000-000000000001", Email: "ghost@example.com", Role: models.RoleStudent}
	stale, err := env.issuer.IssueRefresh(ghost)
	require.NoError(t, err)
	rec, _ = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: stale})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
