package handlers

import (
	"net/http"
	"testing"

	"github.com/ekaya-inc/querypad/pkg/models"
	"github.com/ekaya-inc/querypad/pkg/services"
)

func TestConnectionClientsHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/connection-clients", CreateConnectionClientRequest{ConnectionID: "local"}, "owner", models.RoleEditor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var created services.ClientSnapshot
	decodeData(t, rec, &created)
	if created.ID == "" {
		t.Fatal("expected a client id")
	}
	if !created.Connected {
		t.Error("expected sqlite client to hold a session")
	}
	if created.UserID != "owner" {
		t.Errorf("expected userId 'owner', got %q", created.UserID)
	}
	path := "/api/connection-clients/" + created.ID

	if rec := s.do(t, http.MethodGet, path, nil, "owner", models.RoleEditor); rec.Code != http.StatusOK {
		t.Errorf("owner get: expected %d, got %d", http.StatusOK, rec.Code)
	}
	if rec := s.do(t, http.MethodGet, path, nil, "admin", models.RoleAdmin); rec.Code != http.StatusOK {
		t.Errorf("admin get: expected %d, got %d", http.StatusOK, rec.Code)
	}
	if rec := s.do(t, http.MethodGet, path, nil, "other", models.RoleEditor); rec.Code != http.StatusForbidden {
		t.Errorf("other get: expected %d, got %d", http.StatusForbidden, rec.Code)
	}

	rec = s.do(t, http.MethodPut, path, nil, "owner", models.RoleEditor)
	if rec.Code != http.StatusOK {
		t.Fatalf("keep-alive: expected %d, got %d", http.StatusOK, rec.Code)
	}
	var kept services.ClientSnapshot
	decodeData(t, rec, &kept)
	if kept.LastKeepAliveAt == nil {
		t.Error("expected lastKeepAliveAt after keep-alive")
	}
	if rec := s.do(t, http.MethodPut, path, nil, "admin", models.RoleAdmin); rec.Code != http.StatusForbidden {
		t.Errorf("admin keep-alive: expected %d, got %d", http.StatusForbidden, rec.Code)
	}

	if rec := s.do(t, http.MethodDelete, path, nil, "owner", models.RoleEditor); rec.Code != http.StatusOK {
		t.Errorf("delete: expected %d, got %d", http.StatusOK, rec.Code)
	}
	if rec := s.do(t, http.MethodGet, path, nil, "owner", models.RoleEditor); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := s.do(t, http.MethodDelete, path, nil, "owner", models.RoleEditor); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestConnectionClientsHandler_ListIsAdminOnly(t *testing.T) {
	s := newTestServer(t, false)

	for _, user := range []string{"u1", "u2"} {
		if rec := s.do(t, http.MethodPost, "/api/connection-clients", CreateConnectionClientRequest{ConnectionID: "local"}, user, models.RoleEditor); rec.Code != http.StatusCreated {
			t.Fatalf("create for %s: expected %d, got %d", user, http.StatusCreated, rec.Code)
		}
	}

	if rec := s.do(t, http.MethodGet, "/api/connection-clients", nil, "u1", models.RoleEditor); rec.Code != http.StatusForbidden {
		t.Errorf("editor list: expected %d, got %d", http.StatusForbidden, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/connection-clients", nil, "admin", models.RoleAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list: expected %d, got %d", http.StatusOK, rec.Code)
	}
	var clients []services.ClientSnapshot
	decodeData(t, rec, &clients)
	if len(clients) != 2 {
		t.Errorf("expected 2 clients, got %d", len(clients))
	}
}

func TestConnectionClientsHandler_CreateErrors(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name     string
		body     any
		userID   string
		wantCode int
		wantErr  string
	}{
		{"unauthenticated", CreateConnectionClientRequest{ConnectionID: "local"}, "", http.StatusUnauthorized, "unauthorized"},
		{"missing connection id", CreateConnectionClientRequest{}, "u1", http.StatusBadRequest, "missing_connection_id"},
		{"invalid body", "not an object", "u1", http.StatusBadRequest, "invalid_request"},
		{"unknown connection", CreateConnectionClientRequest{ConnectionID: "nope"}, "u1", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/connection-clients", tt.body, tt.userID, models.RoleEditor)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if got := decodeError(t, rec)["error"]; got != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, got)
			}
		})
	}
}
