// Package auth issues and validates the bearer tokens carried by candidates.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/terra-clan/assessment-engine/internal/models"
)

// Token types
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims identifies the candidate behind a token
type Claims struct {
	CandidateID string      `json:"candidate_id"`
	Email       string      `json:"email"`
	Role        models.Role `json:"role"`
	Type        string      `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer creates and checks tokens
type Issuer interface {
	IssueAccess(c *models.Candidate) (string, error)
	IssueRefresh(c *models.Candidate) (string, error)
	Validate(token string) (*Claims, error)
	ValidateRefresh(token string) (*Claims, error)
}

// JWTConfig configures a JWTIssuer
type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// JWTIssuer signs HS256 tokens with a shared secret
type JWTIssuer struct {
	secret []byte
	cfg    JWTConfig
	now    func() time.Time
}

// NewJWTIssuer creates a token issuer
func NewJWTIssuer(cfg JWTConfig) (*JWTIssuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "assessment-engine"
	}

	return &JWTIssuer{
		secret: []byte(cfg.Secret),
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// IssueAccess returns a short-lived token for API calls
func (i *JWTIssuer) IssueAccess(c *models.Candidate) (string, error) {
	return i.issue(c, TokenAccess, i.cfg.AccessTTL)
}

// IssueRefresh returns a long-lived token for obtaining new access tokens
func (i *JWTIssuer) IssueRefresh(c *models.Candidate) (string, error) {
	return i.issue(c, TokenRefresh, i.cfg.RefreshTTL)
}

func (i *JWTIssuer) issue(c *models.Candidate, typ string, ttl time.Duration) (string, error) {
	now := i.now()

	claims := Claims{
		CandidateID: c.ID,
		Email:       c.Email,
		Role:        c.Role,
		Type:        typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   c.ID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses an access token and returns its claims
func (i *JWTIssuer) Validate(tokenString string) (*Claims, error) {
	claims, err := i.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ValidateRefresh parses a refresh token and returns its claims
func (i *JWTIssuer) ValidateRefresh(tokenString string) (*Claims, error) {
	claims, err := i.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (i *JWTIssuer) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.CandidateID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
