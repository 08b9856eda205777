package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// CookieName is the cookie checked for a token before the Authorization header.
const CookieName = "querypad_jwt"

// LocalUserID is the identity used when token verification is disabled.
const LocalUserID = "local-admin"

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrInvalidToken         = errors.New("invalid token")
	ErrMissingSubject       = errors.New("missing subject in token")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// ValidateRequest extracts and validates a JWT from the request.
	// It checks for the token in:
	//   1. Cookie named "querypad_jwt" (browser clients)
	//   2. Authorization header with "Bearer" scheme (API clients)
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

// authService validates HS256 tokens signed with a shared secret.
type authService struct {
	secret []byte
	logger *zap.Logger
}

// NewAuthService creates an AuthService that verifies tokens with secret.
func NewAuthService(secret string, logger *zap.Logger) AuthService {
	return &authService{
		secret: []byte(secret),
		logger: logger,
	}
}

// ValidateRequest extracts and validates a JWT from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	tokenString, tokenSource, err := s.extractToken(r)
	if err != nil {
		return nil, "", err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, "", ErrMissingSubject
	}

	return claims, tokenString, nil
}

func (s *authService) extractToken(r *http.Request) (string, string, error) {
	// Try cookie first (browser clients)
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, "cookie", nil
	}

	// Fallback to Authorization header (API clients)
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		s.logger.Debug("No JWT found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return "", "", ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return "", "", ErrInvalidAuthFormat
	}
	return parts[1], "header", nil
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)

// localAuthService accepts every request as a local admin.
type localAuthService struct{}

// NewLocalAuthService returns an AuthService for local development with
// verification disabled. Every request runs as LocalUserID with the admin role.
func NewLocalAuthService() AuthService {
	return localAuthService{}
}

func (localAuthService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	claims := &Claims{Email: "admin@localhost", Name: "Local Admin", Role: models.RoleAdmin}
	claims.Subject = LocalUserID
	return claims, "", nil
}

var _ AuthService = localAuthService{}
