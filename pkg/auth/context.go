package auth

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// WithClaims returns a context carrying claims and the raw token.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, TokenKey, token)
}

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetUserFromContext returns the authenticated user, or nil.
func GetUserFromContext(ctx context.Context) *models.User {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil || claims.Subject == "" {
		return nil
	}
	return claims.User()
}

// RequireUserFromContext returns the authenticated user or an error if there is none.
func RequireUserFromContext(ctx context.Context) (*models.User, error) {
	user := GetUserFromContext(ctx)
	if user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}
