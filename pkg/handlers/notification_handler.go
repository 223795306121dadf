package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/auth"
	"github.com/corretorconnect/match-engine/pkg/services"
)

// NotificationHandler serves badge counts.
type NotificationHandler struct {
	notifications services.NotificationService
	logger        *zap.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifications services.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

// RegisterRoutes registers the notification handler's routes on the given mux.
func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/notifications/counts", authMiddleware.RequireAuth(scope(h.Counts)))
}

// Counts handles GET /api/notifications/counts
func (h *NotificationHandler) Counts(w http.ResponseWriter, r *http.Request) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	counts, err := h.notifications.Counts(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, err, "count notifications", h.logger, zap.String("agent_id", agentID.String()))
		return
	}

	writeData(w, http.StatusOK, counts, h.logger)
}
