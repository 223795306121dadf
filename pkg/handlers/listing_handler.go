package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/auth"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/services"
)

// DiscoveryResponse lists the matches a synchronous discovery created.
type DiscoveryResponse struct {
	Created []*models.Match `json:"created"`
	Total   int             `json:"total"`
}

// ListingHandler receives listing save hooks and runs match discovery.
type ListingHandler struct {
	finder services.MatchFinderService
	logger *zap.Logger
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(finder services.MatchFinderService, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{
		finder: finder,
		logger: logger,
	}
}

// RegisterRoutes registers the listing handler's routes on the given mux.
// The save hooks return immediately; discovery acquires its own connection.
func (h *ListingHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/properties/{id}/saved", authMiddleware.RequireAuth(h.PropertySaved))
	mux.HandleFunc("POST /api/client-wants/{id}/saved", authMiddleware.RequireAuth(h.ClientWantSaved))
	mux.HandleFunc("POST /api/properties/{id}/matches", authMiddleware.RequireAuth(scope(h.FindForProperty)))
	mux.HandleFunc("POST /api/client-wants/{id}/matches", authMiddleware.RequireAuth(scope(h.FindForClientWant)))
}

// PropertySaved handles POST /api/properties/{id}/saved
func (h *ListingHandler) PropertySaved(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := ParsePropertyID(w, r, h.logger)
	if !ok {
		return
	}

	h.finder.OnPropertySaved(r.Context(), propertyID)
	writeData(w, http.StatusAccepted, map[string]string{"property_id": propertyID.String()}, h.logger)
}

// ClientWantSaved handles POST /api/client-wants/{id}/saved
func (h *ListingHandler) ClientWantSaved(w http.ResponseWriter, r *http.Request) {
	clientWantID, ok := ParseClientWantID(w, r, h.logger)
	if !ok {
		return
	}

	h.finder.OnClientWantSaved(r.Context(), clientWantID)
	writeData(w, http.StatusAccepted, map[string]string{"client_want_id": clientWantID.String()}, h.logger)
}

// FindForProperty handles POST /api/properties/{id}/matches
func (h *ListingHandler) FindForProperty(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := ParsePropertyID(w, r, h.logger)
	if !ok {
		return
	}

	created, err := h.finder.FindMatchesForProperty(r.Context(), propertyID)
	if err != nil {
		writeServiceError(w, err, "find matches for property", h.logger,
			zap.String("property_id", propertyID.String()))
		return
	}

	writeData(w, http.StatusOK, DiscoveryResponse{Created: created, Total: len(created)}, h.logger)
}

// FindForClientWant handles POST /api/client-wants/{id}/matches
func (h *ListingHandler) FindForClientWant(w http.ResponseWriter, r *http.Request) {
	clientWantID, ok := ParseClientWantID(w, r, h.logger)
	if !ok {
		return
	}

	created, err := h.finder.FindMatchesForClientWant(r.Context(), clientWantID)
	if err != nil {
		writeServiceError(w, err, "find matches for client want", h.logger,
			zap.String("client_want_id", clientWantID.String()))
		return
	}

	writeData(w, http.StatusOK, DiscoveryResponse{Created: created, Total: len(created)}, h.logger)
}
