package api

import (
	"context"

	"github.com/terra-clan/assessment-engine/internal/auth"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// ClaimsFromContext extracts the authenticated candidate's claims
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// ContextWithClaims adds claims to context
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
