package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/auth"
)

// DriversHandler lists the compiled-in drivers.
type DriversHandler struct {
	drivers *datasource.Registry
	logger  *zap.Logger
}

// NewDriversHandler creates a new drivers handler.
func NewDriversHandler(drivers *datasource.Registry, logger *zap.Logger) *DriversHandler {
	return &DriversHandler{drivers: drivers, logger: namedLogger(logger, "drivers-handler")}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *DriversHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/drivers", authMiddleware.RequireAuth(h.List))
}

// List handles GET /api/drivers.
func (h *DriversHandler) List(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.drivers.List(), h.logger)
}
