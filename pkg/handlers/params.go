package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/auth"
)

// ScopeMiddleware attaches a database scope to the request context.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ParseMatchID extracts and validates the match ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseMatchID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_match_id", "Invalid match ID format", logger)
}

// ParsePropertyID extracts and validates the property ID from the request path.
// Expects path parameter: id
func ParsePropertyID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_property_id", "Invalid property ID format", logger)
}

// ParseClientWantID extracts and validates the client want ID from the request path.
// Expects path parameter: id
func ParseClientWantID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_client_want_id", "Invalid client want ID format", logger)
}

// ParseAgentID extracts and validates the agent ID from the request path.
// Expects path parameter: id
func ParseAgentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_agent_id", "Invalid agent ID format", logger)
}

// callerID returns the authenticated agent. A missing identity means the
// route was registered without auth, so it is reported as a 401.
func callerID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	agentID, err := auth.RequireAgentID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", logger)
		return uuid.Nil, false
	}
	return agentID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return uuid.Nil, false
	}
	return id, true
}
