package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
)

// PartnershipRepository stores concluded matches. Rows are never updated
// except to cancel a partnership whose match was reopened.
type PartnershipRepository interface {
	// Create inserts a completed partnership. Returns apperrors.ErrConflict if
	// the match already has a completed one.
	Create(ctx context.Context, p *models.Partnership) error

	// CancelCompletedForMatch marks the match's completed partnership as
	// cancelled. Returns the number of rows changed (0 or 1).
	CancelCompletedForMatch(ctx context.Context, matchID uuid.UUID) (int64, error)

	// ListAugmentedForAgent returns the agent's partnerships, newest first.
	ListAugmentedForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedPartnership, error)
}

type partnershipRepository struct{}

// NewPartnershipRepository creates a new PartnershipRepository.
func NewPartnershipRepository() PartnershipRepository {
	return &partnershipRepository{}
}

var _ PartnershipRepository = (*partnershipRepository)(nil)

const partnershipColumns = `
	id, match_id, property_id, client_want_id, property_agent_id, client_agent_id, status, closed_at`

func (r *partnershipRepository) Create(ctx context.Context, p *models.Partnership) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO partnerships (
			match_id, property_id, client_want_id, property_agent_id, client_agent_id, status
		) VALUES ($1, $2, $3, $4, $5, 'completed')
		RETURNING id, status, closed_at`

	err := scope.Conn.QueryRow(ctx, query,
		p.MatchID, p.PropertyID, p.ClientWantID, p.PropertyAgentID, p.ClientAgentID,
	).Scan(&p.ID, &p.Status, &p.ClosedAt)
	if err != nil {
		if isUniqueViolation(err, constraintCompletedByMatch) {
			return fmt.Errorf("match already has a partnership: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create partnership: %w", err)
	}

	return nil
}

func (r *partnershipRepository) CancelCompletedForMatch(ctx context.Context, matchID uuid.UUID) (int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE partnerships SET status = 'cancelled' WHERE match_id = $1 AND status = 'completed'`,
		matchID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel partnership: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *partnershipRepository) ListAugmentedForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedPartnership, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT pa.id, pa.match_id, pa.property_id, pa.client_want_id,
		       pa.property_agent_id, pa.client_agent_id, pa.status, pa.closed_at,
		       a.id, a.name,
		       p.id, p.property_type, p.purpose, p.city, p.neighborhood, p.price, p.bedrooms,
		       c.id, c.property_type, c.city, c.price_min, c.price_max, c.min_bedrooms
		FROM partnerships pa
		JOIN agents a ON a.id = CASE WHEN pa.property_agent_id = $1 THEN pa.client_agent_id ELSE pa.property_agent_id END
		JOIN properties p ON p.id = pa.property_id
		JOIN client_wants c ON c.id = pa.client_want_id
		WHERE pa.property_agent_id = $1 OR pa.client_agent_id = $1
		ORDER BY pa.closed_at DESC, pa.id`

	rows, err := scope.Conn.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partnerships: %w", err)
	}
	defer rows.Close()

	var out []*models.AugmentedPartnership
	for rows.Next() {
		ap := models.AugmentedPartnership{
			Property:   &models.PropertySummary{},
			ClientWant: &models.ClientWantSummary{},
		}
		targets := partnershipScanTargets(&ap.Partnership)
		targets = append(targets,
			&ap.CounterpartAgentID, &ap.CounterpartAgentName,
			&ap.Property.ID, &ap.Property.PropertyType, &ap.Property.Purpose, &ap.Property.City,
			&ap.Property.Neighborhood, &ap.Property.Price, &ap.Property.Bedrooms,
			&ap.ClientWant.ID, &ap.ClientWant.PropertyType, &ap.ClientWant.City,
			&ap.ClientWant.PriceMin, &ap.ClientWant.PriceMax, &ap.ClientWant.MinBedrooms,
		)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan partnership: %w", err)
		}
		out = append(out, &ap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating partnerships: %w", err)
	}

	return out, nil
}

func partnershipScanTargets(p *models.Partnership) []any {
	return []any{
		&p.ID,
		&p.MatchID,
		&p.PropertyID,
		&p.ClientWantID,
		&p.PropertyAgentID,
		&p.ClientAgentID,
		&p.Status,
		&p.ClosedAt,
	}
}
