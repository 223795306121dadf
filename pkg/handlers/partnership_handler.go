package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/auth"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/services"
)

// PartnershipListResponse for GET /api/partnerships
type PartnershipListResponse struct {
	Partnerships []*models.AugmentedPartnership `json:"partnerships"`
	Total        int                            `json:"total"`
}

// PartnershipHandler lists an agent's partnerships.
type PartnershipHandler struct {
	partnerships services.PartnershipService
	logger       *zap.Logger
}

// NewPartnershipHandler creates a new partnership handler.
func NewPartnershipHandler(partnerships services.PartnershipService, logger *zap.Logger) *PartnershipHandler {
	return &PartnershipHandler{
		partnerships: partnerships,
		logger:       logger,
	}
}

// RegisterRoutes registers the partnership handler's routes on the given mux.
func (h *PartnershipHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/partnerships", authMiddleware.RequireAuth(scope(h.List)))
}

// List handles GET /api/partnerships
func (h *PartnershipHandler) List(w http.ResponseWriter, r *http.Request) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	list, err := h.partnerships.ListAugmentedPartnerships(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, err, "list partnerships", h.logger, zap.String("agent_id", agentID.String()))
		return
	}
	if list == nil {
		list = []*models.AugmentedPartnership{}
	}

	writeData(w, http.StatusOK, PartnershipListResponse{Partnerships: list, Total: len(list)}, h.logger)
}
