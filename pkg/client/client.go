package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/terra-clan/assessment-engine/internal/models"
)

// Client is a Go SDK for the assessment-engine API
type Client struct {
	baseURL    string
	token      string
	headers    http.Header
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header to every request, e.g. the Safe Exam Browser key
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// NewClient creates a new assessment-engine client authenticated with an
// access token
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		headers: make(http.Header),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error envelope returned by the server
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Eligibility is the server's answer to "may I start now"
type Eligibility struct {
	Allowed  bool        `json:"allowed"`
	NextStep models.Step `json:"next_step"`
	Reason   string      `json:"reason"`
}

// Eligibility reports whether the candidate may start an assessment
func (c *Client) Eligibility(ctx context.Context) (*Eligibility, error) {
	var out Eligibility
	if err := c.call(ctx, http.MethodGet, "/api/v1/assessments/eligibility", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartAssessment starts the next assessment step
func (c *Client) StartAssessment(ctx context.Context) (*models.StartSessionResponse, error) {
	var out models.StartSessionResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/assessments/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAssessment submits answers for an in-progress assessment
func (c *Client) SubmitAssessment(ctx context.Context, sessionID string, answers []models.Answer) (*models.SubmitSessionResponse, error) {
	if answers == nil {
		answers = []models.Answer{}
	}

	var out models.SubmitSessionResponse
	path := fmt.Sprintf("/api/v1/assessments/%s/submit", url.PathEscape(sessionID))
	if err := c.call(ctx, http.MethodPost, path, models.SubmitSessionRequest{Answers: answers}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyCertification returns the highest level reached and the attempt history
func (c *Client) MyCertification(ctx context.Context) (*models.CertificationResponse, error) {
	var out models.CertificationResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/certifications/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken exchanges a refresh token for a new token pair. It does not
// change the token this client sends.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	var out models.TokenResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/refresh", models.RefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// Ready checks if the service and its dependencies are ready
func (c *Client) Ready(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/ready", nil, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// call performs a request and decodes the envelope's data into out
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var result envelope
	if err := json.Unmarshal(resp, &result); err != nil {
		if status >= 400 {
			return &APIError{StatusCode: status, Code: "http_error", Message: string(resp)}
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success || status >= 400 {
		apiErr := &APIError{StatusCode: status, Code: "unknown_error"}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
