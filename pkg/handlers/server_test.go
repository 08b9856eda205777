package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/querypad/pkg/auth"
	"github.com/ekaya-inc/querypad/pkg/models"
	"github.com/ekaya-inc/querypad/pkg/repositories"
	"github.com/ekaya-inc/querypad/pkg/services"
	"github.com/ekaya-inc/querypad/pkg/testhelpers"
)

const testSecret = "handler-test-secret"

// testServer wires the real services against a seeded SQLite connection "local".
type testServer struct {
	mux      *http.ServeMux
	registry services.ConnectionClientRegistry
}

func newTestServer(t *testing.T, allowDownloads bool) *testServer {
	t.Helper()

	// Handlers and client timers may log after the test returns.
	logger := zap.NewNop()

	drivers := datasource.NewRegistry()
	drivers.Register(&sqlite.Driver{})

	fixture := testhelpers.NewSQLiteFixture(t)
	connections, err := repositories.NewConnectionRepository(
		[]models.ConnectionConfig{fixture.Connection("local")}, drivers, nil)
	if err != nil {
		t.Fatalf("failed to build connection repository: %v", err)
	}

	deps := services.ClientDeps{
		Drivers:          drivers,
		Scheduler:        services.NewScheduler(),
		Logger:           logger,
		KeepAliveTimeout: time.Hour,
		CleanupInterval:  time.Hour,
	}
	registry := services.NewConnectionClientRegistry(deps)
	t.Cleanup(func() { registry.Close(context.Background()) })

	exporter, err := services.NewResultExporter(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("failed to create exporter: %v", err)
	}

	clientService := services.NewConnectionClientService(connections, registry, 100, logger)
	schemaService := services.NewSchemaInfoService(connections, repositories.NewMemorySchemaCacheRepository(), deps, 0)
	resultService := services.NewQueryResultService(connections, registry, repositories.NewMemoryResultCacheRepository(), exporter, deps,
		services.QueryResultOptions{DefaultMaxRows: 100, AllowDownloads: allowDownloads})

	authMiddleware := auth.NewMiddleware(auth.NewAuthService(testSecret, logger), logger)
	mux := http.NewServeMux()
	NewConnectionClientsHandler(clientService, logger).RegisterRoutes(mux, authMiddleware)
	NewSchemaInfoHandler(schemaService, logger).RegisterRoutes(mux, authMiddleware)
	NewQueryResultHandler(resultService, logger).RegisterRoutes(mux, authMiddleware)
	NewDriversHandler(drivers, logger).RegisterRoutes(mux, authMiddleware)

	return &testServer{mux: mux, registry: registry}
}

// do sends a request as userID with role. An empty userID sends no token.
func (s *testServer) do(t *testing.T, method, path string, body any, userID, role string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+testhelpers.MintToken(t, testSecret, userID, role))
	}

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}
