package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
)

// MetricsRepository gathers the raw per-agent counts behind the ranking.
type MetricsRepository interface {
	// ListAgentActivity returns one row per agent in scope. When since is
	// non-nil, timestamped events before it are ignored; follow counts are
	// always current totals.
	ListAgentActivity(ctx context.Context, scope models.MetricScope, since *time.Time) ([]*models.AgentActivity, error)
}

type metricsRepository struct{}

// NewMetricsRepository creates a new MetricsRepository.
func NewMetricsRepository() MetricsRepository {
	return &metricsRepository{}
}

var _ MetricsRepository = (*metricsRepository)(nil)

func (r *metricsRepository) ListAgentActivity(ctx context.Context, ms models.MetricScope, since *time.Time) ([]*models.AgentActivity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	// A conversation is initiated by whoever sent the first message of a match.
	query := `
		WITH scoped_agents AS (
			SELECT id, name, city, state
			FROM agents
			WHERE ($1::text = '' OR lower(btrim(city)) = lower(btrim($1::text)))
			  AND ($2::text = '' OR lower(btrim(state)) = lower(btrim($2::text)))
		),
		first_messages AS (
			SELECT DISTINCT ON (match_id) match_id, sender_id, created_at
			FROM messages
			ORDER BY match_id, created_at, id
		)
		SELECT s.id, s.name, COALESCE(s.city, ''), s.state,
			(SELECT COUNT(*) FROM properties p
			  WHERE p.agent_id = s.id
			    AND ($3::timestamptz IS NULL OR p.created_at >= $3)),
			(SELECT COUNT(*) FROM client_wants c
			  WHERE c.agent_id = s.id
			    AND ($3::timestamptz IS NULL OR c.created_at >= $3)),
			(SELECT COUNT(*) FROM matches m
			  WHERE m.kind = 'standard'
			    AND (m.property_agent_id = s.id OR m.client_agent_id = s.id)
			    AND ($3::timestamptz IS NULL OR m.created_at >= $3)),
			(SELECT COUNT(*) FROM first_messages fm
			  WHERE fm.sender_id = s.id
			    AND ($3::timestamptz IS NULL OR fm.created_at >= $3)),
			(SELECT COUNT(*) FROM partnerships pa
			  WHERE pa.status = 'completed'
			    AND (pa.property_agent_id = s.id OR pa.client_agent_id = s.id)
			    AND ($3::timestamptz IS NULL OR pa.closed_at >= $3)),
			(SELECT COUNT(*) FROM follows f WHERE f.followed_id = s.id),
			(SELECT COUNT(*) FROM follows f WHERE f.follower_id = s.id)
		FROM scoped_agents s`

	rows, err := scope.Conn.Query(ctx, query, ms.City, ms.State, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate agent activity: %w", err)
	}
	defer rows.Close()

	var out []*models.AgentActivity
	for rows.Next() {
		var a models.AgentActivity
		err := rows.Scan(
			&a.AgentID,
			&a.AgentName,
			&a.City,
			&a.State,
			&a.PropertiesAdded,
			&a.ClientsAdded,
			&a.MatchesInitiated,
			&a.ConversationsInitiated,
			&a.PartnershipsCompleted,
			&a.Followers,
			&a.Following,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent activity: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent activity: %w", err)
	}

	return out, nil
}
