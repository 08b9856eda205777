package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/auth"
	"github.com/ekaya-inc/querypad/pkg/models"
	"github.com/ekaya-inc/querypad/pkg/services"
)

// SchemaInfoResponse wraps a schema tree.
type SchemaInfoResponse struct {
	SchemaInfo models.SchemaTree `json:"schemaInfo"`
}

// SchemaInfoHandler serves cached schema trees.
type SchemaInfoHandler struct {
	schemas services.SchemaInfoService
	logger  *zap.Logger
}

// NewSchemaInfoHandler creates a new schema info handler.
func NewSchemaInfoHandler(schemas services.SchemaInfoService, logger *zap.Logger) *SchemaInfoHandler {
	return &SchemaInfoHandler{
		schemas: schemas,
		logger:  namedLogger(logger, "schema-info-handler"),
	}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *SchemaInfoHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/schema-info/{connectionId}", authMiddleware.RequireAuth(h.Get))
}

// Get handles GET /api/schema-info/{connectionId}?reload=true.
func (h *SchemaInfoHandler) Get(w http.ResponseWriter, r *http.Request) {
	reload := false
	if v := r.URL.Query().Get("reload"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_reload", "reload must be true or false", h.logger)
			return
		}
		reload = parsed
	}

	tree, err := h.schemas.Get(r.Context(), r.PathValue("connectionId"), auth.GetUserFromContext(r.Context()), reload)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if tree == nil {
		tree = models.SchemaTree{}
	}

	writeData(w, http.StatusOK, SchemaInfoResponse{SchemaInfo: tree}, h.logger)
}
