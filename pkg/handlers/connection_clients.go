package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/auth"
	"github.com/ekaya-inc/querypad/pkg/services"
)

// CreateConnectionClientRequest is the body of POST /api/connection-clients.
type CreateConnectionClientRequest struct {
	ConnectionID string `json:"connectionId"`
}

// ConnectionClientsHandler exposes connection client lifecycle operations.
type ConnectionClientsHandler struct {
	clients services.ConnectionClientService
	logger  *zap.Logger
}

// NewConnectionClientsHandler creates a new connection clients handler.
func NewConnectionClientsHandler(clients services.ConnectionClientService, logger *zap.Logger) *ConnectionClientsHandler {
	return &ConnectionClientsHandler{
		clients: clients,
		logger:  namedLogger(logger, "connection-clients-handler"),
	}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *ConnectionClientsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/connection-clients", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/connection-clients", authMiddleware.RequireAdmin(h.List))
	mux.HandleFunc("GET /api/connection-clients/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/connection-clients/{id}", authMiddleware.RequireAuth(h.KeepAlive))
	mux.HandleFunc("DELETE /api/connection-clients/{id}", authMiddleware.RequireAuth(h.Disconnect))
}

// Create handles POST /api/connection-clients.
// Opens a client for the connection and returns its snapshot.
func (h *ConnectionClientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}
	if req.ConnectionID == "" {
		writeError(w, http.StatusBadRequest, "missing_connection_id", "connectionId is required", h.logger)
		return
	}

	client, err := h.clients.Create(r.Context(), req.ConnectionID, auth.GetUserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeData(w, http.StatusCreated, client.Snapshot(), h.logger)
}

// List handles GET /api/connection-clients. Admin only.
func (h *ConnectionClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context(), auth.GetUserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	snapshots := make([]services.ClientSnapshot, len(clients))
	for i, c := range clients {
		snapshots[i] = c.Snapshot()
	}
	writeData(w, http.StatusOK, snapshots, h.logger)
}

// Get handles GET /api/connection-clients/{id}.
func (h *ConnectionClientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients.Get(r.Context(), r.PathValue("id"), auth.GetUserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, client.Snapshot(), h.logger)
}

// KeepAlive handles PUT /api/connection-clients/{id}.
// A client that lost its session is removed and reported as not found.
func (h *ConnectionClientsHandler) KeepAlive(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients.KeepAlive(r.Context(), r.PathValue("id"), auth.GetUserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, client.Snapshot(), h.logger)
}

// Disconnect handles DELETE /api/connection-clients/{id}.
func (h *ConnectionClientsHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.clients.Disconnect(r.Context(), id, auth.GetUserFromContext(r.Context())); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id}, h.logger)
}
