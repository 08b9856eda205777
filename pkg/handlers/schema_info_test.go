package handlers

import (
	"net/http"
	"testing"

	"github.com/ekaya-inc/querypad/pkg/models"
)

func TestSchemaInfoHandler_Get(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/api/schema-info/local", "/api/schema-info/local?reload=true"} {
		rec := s.do(t, http.MethodGet, path, nil, "u1", models.RoleEditor)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d: %s", path, http.StatusOK, rec.Code, rec.Body.String())
		}

		var resp SchemaInfoResponse
		decodeData(t, rec, &resp)
		tables, ok := resp.SchemaInfo["main"]
		if !ok {
			t.Fatalf("%s: expected schema 'main', got %v", path, resp.SchemaInfo)
		}
		if len(tables["orders"]) != 3 {
			t.Errorf("%s: expected 3 order columns, got %d", path, len(tables["orders"]))
		}
	}
}

func TestSchemaInfoHandler_Errors(t *testing.T) {
	s := newTestServer(t, false)

	if rec := s.do(t, http.MethodGet, "/api/schema-info/local?reload=maybe", nil, "u1", models.RoleEditor); rec.Code != http.StatusBadRequest {
		t.Errorf("bad reload: expected %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/schema-info/nope", nil, "u1", models.RoleEditor); rec.Code != http.StatusNotFound {
		t.Errorf("unknown connection: expected %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/schema-info/local", nil, "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: expected %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}
