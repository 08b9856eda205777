// Package auth provides JWT-based authentication for querypad.
// Bearer tokens are HS256-signed with a shared secret.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims carried by a querypad bearer token.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the user's profile and role.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"` // 'admin', 'editor'
}

// User converts the claims into the user a request runs under.
// Unknown roles are downgraded to editor.
func (c *Claims) User() *models.User {
	role := c.Role
	if !models.IsValidRole(role) {
		role = models.RoleEditor
	}
	return &models.User{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.Name,
		Role:  role,
	}
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
