package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// MintToken issues an HS256 bearer token the auth middleware accepts.
func MintToken(t *testing.T, secret, userID, role string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"name":  userID,
		"role":  role,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
