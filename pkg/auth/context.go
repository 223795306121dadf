package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// WithAgentID returns a context carrying the authenticated agent id.
func WithAgentID(ctx context.Context, agentID uuid.UUID) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// GetAgentID returns the authenticated agent id set by the middleware.
func GetAgentID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(AgentIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// RequireAgentID is GetAgentID for callers that cannot proceed anonymously.
func RequireAgentID(ctx context.Context) (uuid.UUID, error) {
	id, ok := GetAgentID(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("agent ID not found in context")
	}
	return id, nil
}
