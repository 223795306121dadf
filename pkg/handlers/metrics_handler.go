package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/auth"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/services"
)

const (
	periodMonthly = "monthly"
	periodAll     = "all"
)

// MetricsQuery is the query string of GET /api/metrics.
type MetricsQuery struct {
	City   string `json:"city" validate:"max=120"`
	State  string `json:"state" validate:"max=60"`
	Period string `json:"period" validate:"omitempty,oneof=monthly all"`
}

// MetricsResponse for GET /api/metrics
type MetricsResponse struct {
	Period  string             `json:"period"`
	Since   *time.Time         `json:"since,omitempty"`
	Ranking []*models.Metric   `json:"ranking"`
	Scope   models.MetricScope `json:"scope"`
}

// MetricsHandler serves the agent ranking.
type MetricsHandler struct {
	metrics services.MetricsService
	now     func() time.Time
	logger  *zap.Logger
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(metrics services.MetricsService, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		now:     time.Now,
		logger:  logger,
	}
}

// RegisterRoutes registers the metrics handler's routes on the given mux.
func (h *MetricsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/metrics", authMiddleware.RequireAuth(scope(h.Ranking)))
}

// Ranking handles GET /api/metrics?city=&state=&period=monthly|all
// The period defaults to all time.
func (h *MetricsHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := MetricsQuery{
		City:   q.Get("city"),
		State:  q.Get("state"),
		Period: q.Get("period"),
	}
	if !validateRequest(w, &query, h.logger) {
		return
	}
	if query.Period == "" {
		query.Period = periodAll
	}

	var since *time.Time
	if query.Period == periodMonthly {
		start := services.MonthStart(h.now())
		since = &start
	}

	scope := models.MetricScope{City: query.City, State: query.State}
	ranking, err := h.metrics.ComputeMetrics(r.Context(), scope, since)
	if err != nil {
		writeServiceError(w, err, "compute metrics", h.logger,
			zap.String("city", query.City),
			zap.String("state", query.State),
			zap.String("period", query.Period))
		return
	}

	writeData(w, http.StatusOK, MetricsResponse{
		Period:  query.Period,
		Since:   since,
		Ranking: ranking,
		Scope:   scope,
	}, h.logger)
}
