package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/config"
)

// readinessCheckTimeout bounds each dependency check run by GET /ready.
const readinessCheckTimeout = 2 * time.Second

// PingResponse contains service status and version information.
type PingResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Service       string `json:"service"`
	GoVersion     string `json:"go_version"`
	Hostname      string `json:"hostname"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Clients       int    `json:"connection_clients"`
}

// ReadyResponse reports each dependency check as "ok" or its error.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ClientCounter reports how many connection clients are registered.
type ClientCounter func() int

// ReadinessCheck reports whether one dependency, such as the Redis cache
// backend or the export directory, is usable.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler serves liveness, readiness and ping endpoints.
type HealthHandler struct {
	cfg     *config.Config
	clients ClientCounter
	checks  map[string]ReadinessCheck
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. clients and checks may be nil.
func NewHealthHandler(cfg *config.Config, clients ClientCounter, checks map[string]ReadinessCheck, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:     cfg,
		clients: clients,
		checks:  checks,
		started: time.Now(),
		logger:  namedLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health. The process is alive if it can answer.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready handles GET /ready. Checks run concurrently; any failure answers 503
// so a load balancer stops routing queries to an instance whose cache
// backend or export directory is gone.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), readinessCheckTimeout)
			defer cancel()
			results[i] = h.checks[name](ctx)
		}()
	}
	wg.Wait()

	response := ReadyResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for i, name := range names {
		if err := results[i]; err != nil {
			h.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			response.Checks[name] = err.Error()
			response.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode ready response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:        "ok",
		Version:       h.cfg.Version,
		Service:       "querypad",
		GoVersion:     runtime.Version(),
		Hostname:      hostname,
		Environment:   h.cfg.Env,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.clients != nil {
		response.Clients = h.clients()
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// DirCheck reports whether dir exists and is a directory.
func DirCheck(dir string) ReadinessCheck {
	return func(ctx context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return &os.PathError{Op: "stat", Path: dir, Err: os.ErrInvalid}
		}
		return nil
	}
}
