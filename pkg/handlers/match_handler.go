package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/auth"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// MatchListResponse for GET /api/matches
type MatchListResponse struct {
	Matches []*models.AugmentedMatch `json:"matches"`
	Total   int                      `json:"total"`
}

// TransitionRequest for POST /api/matches/{id}/transitions
type TransitionRequest struct {
	Event string `json:"event" validate:"required,oneof=confirm_conclusion confirm_closure request_reopen accept_reopen reject_reopen"`
}

// ============================================================================
// Handler
// ============================================================================

// MatchHandler serves an agent's matches and their lifecycle.
type MatchHandler struct {
	lifecycle     services.MatchLifecycleService
	partnerships  services.PartnershipService
	notifications services.NotificationService
	logger        *zap.Logger
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(
	lifecycle services.MatchLifecycleService,
	partnerships services.PartnershipService,
	notifications services.NotificationService,
	logger *zap.Logger,
) *MatchHandler {
	return &MatchHandler{
		lifecycle:     lifecycle,
		partnerships:  partnerships,
		notifications: notifications,
		logger:        logger,
	}
}

// RegisterRoutes registers the match handler's routes on the given mux.
func (h *MatchHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/matches"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("POST "+base+"/{id}/transitions", authMiddleware.RequireAuth(scope(h.Transition)))
	mux.HandleFunc("POST "+base+"/{id}/conclude", authMiddleware.RequireAuth(scope(h.Conclude)))
	mux.HandleFunc("POST "+base+"/{id}/viewed", authMiddleware.RequireAuth(scope(h.MarkViewed)))
	mux.HandleFunc("POST "+base+"/{id}/status-viewed", authMiddleware.RequireAuth(scope(h.MarkStatusViewed)))
}

// List handles GET /api/matches
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	matches, err := h.lifecycle.ListAugmentedMatches(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, err, "list matches", h.logger, zap.String("agent_id", agentID.String()))
		return
	}
	if matches == nil {
		matches = []*models.AugmentedMatch{}
	}

	writeData(w, http.StatusOK, MatchListResponse{Matches: matches, Total: len(matches)}, h.logger)
}

// Transition handles POST /api/matches/{id}/transitions
func (h *MatchHandler) Transition(w http.ResponseWriter, r *http.Request) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	matchID, ok := ParseMatchID(w, r, h.logger)
	if !ok {
		return
	}

	var req TransitionRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	ev, err := models.ParseMatchEvent(req.Event)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error(), h.logger)
		return
	}

	result, err := h.lifecycle.TransitionMatch(r.Context(), matchID, ev, agentID)
	if err != nil {
		writeServiceError(w, err, "transition match", h.logger,
			zap.String("match_id", matchID.String()),
			zap.String("event", req.Event),
			zap.String("agent_id", agentID.String()))
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}

// Conclude handles POST /api/matches/{id}/conclude
func (h *MatchHandler) Conclude(w http.ResponseWriter, r *http.Request) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	matchID, ok := ParseMatchID(w, r, h.logger)
	if !ok {
		return
	}

	partnership, err := h.partnerships.ConcludeMatch(r.Context(), matchID, agentID)
	if err != nil {
		writeServiceError(w, err, "conclude match", h.logger,
			zap.String("match_id", matchID.String()),
			zap.String("agent_id", agentID.String()))
		return
	}

	writeData(w, http.StatusCreated, partnership, h.logger)
}

// MarkViewed handles POST /api/matches/{id}/viewed
func (h *MatchHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	h.markSeen(w, r, h.notifications.MarkMatchViewed, "mark match viewed")
}

// MarkStatusViewed handles POST /api/matches/{id}/status-viewed
func (h *MatchHandler) MarkStatusViewed(w http.ResponseWriter, r *http.Request) {
	h.markSeen(w, r, h.notifications.MarkStatusChangeViewed, "mark status change viewed")
}

func (h *MatchHandler) markSeen(w http.ResponseWriter, r *http.Request, mark func(ctx context.Context, matchID, agentID uuid.UUID) error, action string) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	matchID, ok := ParseMatchID(w, r, h.logger)
	if !ok {
		return
	}

	if err := mark(r.Context(), matchID, agentID); err != nil {
		writeServiceError(w, err, action, h.logger,
			zap.String("match_id", matchID.String()),
			zap.String("agent_id", agentID.String()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
