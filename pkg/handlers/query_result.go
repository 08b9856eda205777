package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/auth"
	"github.com/ekaya-inc/querypad/pkg/services"
)

// QueryResultHandler runs queries and serves their exports.
type QueryResultHandler struct {
	results services.QueryResultService
	logger  *zap.Logger
}

// NewQueryResultHandler creates a new query result handler.
func NewQueryResultHandler(results services.QueryResultService, logger *zap.Logger) *QueryResultHandler {
	return &QueryResultHandler{
		results: results,
		logger:  namedLogger(logger, "query-result-handler"),
	}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *QueryResultHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/query-result", authMiddleware.RequireAuth(h.Run))
	mux.HandleFunc("GET /download-results/{cacheKey}/{format}", authMiddleware.RequireAuth(h.Download))
}

// Run handles POST /api/query-result.
func (h *QueryResultHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req services.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}

	result, err := h.results.Run(r.Context(), req, auth.GetUserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}

// Download handles GET /download-results/{cacheKey}/{format}.
// Only the user who ran the query, or an admin, may download it.
func (h *QueryResultHandler) Download(w http.ResponseWriter, r *http.Request) {
	download, err := h.results.Download(r.Context(), r.PathValue("cacheKey"), r.PathValue("format"), auth.GetUserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": download.Filename}))
	http.ServeFile(w, r, download.Path)
}
