package auth

import (
	"context"
	"testing"

	"github.com/ekaya-inc/querypad/pkg/models"
)

func TestGetClaims_Success(t *testing.T) {
	claims := &Claims{Email: "ada@example.com"}
	claims.Subject = "user-123"

	ctx := context.WithValue(context.Background(), ClaimsKey, claims)

	got, ok := GetClaims(ctx)
	if !ok {
		t.Fatal("expected claims to be found")
	}
	if got.Subject != "user-123" {
		t.Errorf("expected subject 'user-123', got %q", got.Subject)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("expected email 'ada@example.com', got %q", got.Email)
	}
}

func TestGetClaims_NotFound(t *testing.T) {
	_, ok := GetClaims(context.Background())
	if ok {
		t.Error("expected claims to not be found")
	}
}

func TestGetClaims_WrongType(t *testing.T) {
	// Context has wrong type for claims key
	ctx := context.WithValue(context.Background(), ClaimsKey, "not-a-claims-struct")

	_, ok := GetClaims(ctx)
	if ok {
		t.Error("expected claims to not be found when wrong type")
	}
}

func TestGetToken_Success(t *testing.T) {
	ctx := context.WithValue(context.Background(), TokenKey, "test-token-abc123")

	got, ok := GetToken(ctx)
	if !ok {
		t.Fatal("expected token to be found")
	}
	if got != "test-token-abc123" {
		t.Errorf("expected 'test-token-abc123', got %q", got)
	}
}

func TestGetToken_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TokenKey, 12345)

	_, ok := GetToken(ctx)
	if ok {
		t.Error("expected token to not be found when wrong type")
	}
}

func TestClaims_User(t *testing.T) {
	claims := &Claims{Email: "ada@example.com", Name: "Ada", Role: models.RoleAdmin}
	claims.Subject = "ada"

	user := claims.User()
	if user.ID != "ada" || user.Email != "ada@example.com" || user.Name != "Ada" {
		t.Errorf("unexpected user %+v", user)
	}
	if !user.IsAdmin() {
		t.Error("expected admin role")
	}

	claims.Role = "superuser"
	if got := claims.User().Role; got != models.RoleEditor {
		t.Errorf("expected unknown role to become editor, got %q", got)
	}
}
