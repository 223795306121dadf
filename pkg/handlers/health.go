package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/config"
	"github.com/corretorconnect/match-engine/pkg/services/workqueue"
)

// Pinger reports whether a dependency is reachable. *database.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueStats exposes background discovery progress. *workqueue.Queue satisfies it.
type QueueStats interface {
	Progress() workqueue.Progress
	GetTasks() []workqueue.TaskSnapshot
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string              `json:"status"`
	Database  string              `json:"database,omitempty"`
	Discovery *workqueue.Progress `json:"discovery,omitempty"`
	// DiscoveryTasks lists pending and running discovery runs.
	DiscoveryTasks []workqueue.TaskSnapshot `json:"discovery_tasks,omitempty"`
}

// healthCheckTimeout bounds the database ping.
const healthCheckTimeout = 2 * time.Second

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	db     Pinger
	queue  QueueStats
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and queue may be nil.
func NewHealthHandler(cfg *config.Config, db Pinger, queue QueueStats, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, queue: queue, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests. Reports 503 when the database is
// unreachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("Health check: database unreachable", zap.Error(err))
			response.Status = "degraded"
			response.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response.Database = "ok"
		}
	}

	if h.queue != nil {
		p := h.queue.Progress()
		response.Discovery = &p
		response.DiscoveryTasks = h.queue.GetTasks()
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "match-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
