package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/terra-clan/assessment-engine/internal/auth"
	"github.com/terra-clan/assessment-engine/internal/models"
)

// AuthMiddleware handles bearer token authentication
type AuthMiddleware struct {
	issuer auth.Issuer
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(issuer auth.Issuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

// Authenticate verifies the access token from the Authorization header
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "provide Authorization header with Bearer token")
			return
		}

		claims, err := m.issuer.Validate(token)
		if err != nil {
			slog.Warn("invalid token attempt", "error", err, "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "unauthorized", "the provided token is not valid")
			return
		}

		slog.Debug("authenticated request", "candidate_id", claims.CandidateID, "role", claims.Role)

		ctx := ContextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns middleware that admits only the given roles
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.Warn("role denied",
				"candidate_id", claims.CandidateID,
				"role", claims.Role,
				"required", roles,
			)
			respondError(w, http.StatusForbidden, "forbidden", "your role cannot access this resource")
		})
	}
}

// requireExamBrowser rejects requests that do not carry the configured
// Safe Exam Browser header. It passes everything when no header is configured.
func (s *Server) requireExamBrowser(next http.Handler) http.Handler {
	if s.seb.Header == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(s.seb.Header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.seb.Value)) != 1 {
			slog.Warn("exam browser check failed", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			respondError(w, http.StatusForbidden, "exam_browser_required", "assessments must be taken in Safe Exam Browser")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>"
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
