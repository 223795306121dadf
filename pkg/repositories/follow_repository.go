package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/corretorconnect/match-engine/pkg/database"
)

// FollowRepository reads the agent follow graph.
type FollowRepository interface {
	// IsMutualFollow reports whether a follows b and b follows a.
	IsMutualFollow(ctx context.Context, agentA, agentB uuid.UUID) (bool, error)
}

type followRepository struct{}

// NewFollowRepository creates a new FollowRepository.
func NewFollowRepository() FollowRepository {
	return &followRepository{}
}

var _ FollowRepository = (*followRepository)(nil)

func (r *followRepository) IsMutualFollow(ctx context.Context, agentA, agentB uuid.UUID) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT COUNT(*) = 2 FROM follows
		WHERE (follower_id = $1 AND followed_id = $2)
		   OR (follower_id = $2 AND followed_id = $1)`

	var mutual bool
	if err := scope.Conn.QueryRow(ctx, query, agentA, agentB).Scan(&mutual); err != nil {
		return false, fmt.Errorf("failed to check mutual follow: %w", err)
	}

	return mutual, nil
}
