package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
)

// MatchRepository provides data access for matches.
type MatchRepository interface {
	// Create inserts a single standard match. Returns apperrors.ErrDuplicatePair
	// when the property/client-want pair already has one.
	Create(ctx context.Context, m *models.Match) error

	// CreateBatch inserts standard matches, silently skipping pairs that
	// already exist (including ones inserted concurrently). Returns the
	// matches that were actually inserted.
	CreateBatch(ctx context.Context, matches []*models.Match) ([]*models.Match, error)

	// CreateDirectChat inserts a direct chat. Returns apperrors.ErrConflict
	// if the two agents already have one.
	CreateDirectChat(ctx context.Context, m *models.Match) error

	// FindDirectChat returns the direct chat between two agents, in either order.
	FindDirectChat(ctx context.Context, agentA, agentB uuid.UUID) (*models.Match, error)

	// GetByID returns apperrors.ErrNotFound when the match does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error)

	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Match, error)

	// ListPairKeysForProperty returns the pairs already matched for a property.
	ListPairKeysForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.PairKey, error)

	// ListPairKeysForClientWant returns the pairs already matched for a client want.
	ListPairKeysForClientWant(ctx context.Context, clientWantID uuid.UUID) ([]models.PairKey, error)

	// ListAugmentedForAgent returns the agent's matches joined with display
	// data, super matches first, then newest first.
	ListAugmentedForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedMatch, error)

	// UpdateStatus applies a compare-and-swap status write and returns the
	// updated row. Returns apperrors.ErrStaleState if the row moved on.
	UpdateStatus(ctx context.Context, u models.StatusUpdate) (*models.Match, error)

	// MarkViewed sets the side's viewed flag if unset. Reports whether it changed.
	MarkViewed(ctx context.Context, id uuid.UUID, side models.MatchSide) (bool, error)

	// MarkStatusChangeViewed sets the side's status-viewed flag if unset.
	MarkStatusChangeViewed(ctx context.Context, id uuid.UUID, side models.MatchSide) (bool, error)

	// CountUnviewed counts standard matches the agent has not opened yet.
	CountUnviewed(ctx context.Context, agentID uuid.UUID) (int, error)
}

type matchRepository struct{}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository() MatchRepository {
	return &matchRepository{}
}

var _ MatchRepository = (*matchRepository)(nil)

const matchColumns = `
	id, kind, property_id, client_want_id, property_agent_id, client_agent_id,
	status, status_change_requester_id, reopen_from_status,
	property_agent_viewed, client_agent_viewed,
	property_agent_status_viewed, client_agent_status_viewed,
	is_super_match, version, created_at, updated_at`

const insertStandardMatch = `
	INSERT INTO matches (
		kind, property_id, client_want_id, property_agent_id, client_agent_id,
		status, is_super_match
	) VALUES ('standard', $1, $2, $3, $4, 'open', $5)`

func (r *matchRepository) Create(ctx context.Context, m *models.Match) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := insertStandardMatch + ` RETURNING ` + matchColumns

	row := scope.Conn.QueryRow(ctx, query,
		m.PropertyID, m.ClientWantID, m.PropertyAgentID, m.ClientAgentID, m.IsSuperMatch)
	if err := scanMatchInto(row, m); err != nil {
		if isUniqueViolation(err, constraintMatchPair) {
			return apperrors.ErrDuplicatePair
		}
		return fmt.Errorf("failed to create match: %w", err)
	}

	return nil
}

func (r *matchRepository) CreateBatch(ctx context.Context, matches []*models.Match) ([]*models.Match, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := insertStandardMatch + `
		ON CONFLICT (property_id, client_want_id) WHERE kind = 'standard' DO NOTHING
		RETURNING ` + matchColumns

	batch := &pgx.Batch{}
	for _, m := range matches {
		batch.Queue(query, m.PropertyID, m.ClientWantID, m.PropertyAgentID, m.ClientAgentID, m.IsSuperMatch)
	}

	results := scope.Conn.SendBatch(ctx, batch)
	defer results.Close()

	inserted := make([]*models.Match, 0, len(matches))
	for i, m := range matches {
		err := scanMatchInto(results.QueryRow(), m)
		if errors.Is(err, pgx.ErrNoRows) {
			// pair already matched
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create match %d: %w", i, err)
		}
		inserted = append(inserted, m)
	}

	return inserted, nil
}

func (r *matchRepository) CreateDirectChat(ctx context.Context, m *models.Match) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO matches (
			kind, property_agent_id, client_agent_id, status,
			property_agent_viewed, client_agent_viewed
		) VALUES ('direct_chat', $1, $2, 'direct_chat', true, false)
		RETURNING ` + matchColumns

	row := scope.Conn.QueryRow(ctx, query, m.PropertyAgentID, m.ClientAgentID)
	if err := scanMatchInto(row, m); err != nil {
		if isUniqueViolation(err, constraintDirectChatPair) {
			return fmt.Errorf("direct chat already exists: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create direct chat: %w", err)
	}

	return nil
}

func (r *matchRepository) FindDirectChat(ctx context.Context, agentA, agentB uuid.UUID) (*models.Match, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE kind = 'direct_chat'
		  AND LEAST(property_agent_id, client_agent_id) = LEAST($1::uuid, $2::uuid)
		  AND GREATEST(property_agent_id, client_agent_id) = GREATEST($1::uuid, $2::uuid)`

	return scanMatch(scope.Conn.QueryRow(ctx, query, agentA, agentB))
}

func (r *matchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(scope.Conn.QueryRow(ctx, query, id))
}

func (r *matchRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return scanMatch(scope.Conn.QueryRow(ctx, query, id))
}

func (r *matchRepository) ListPairKeysForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.PairKey, error) {
	return r.listPairKeys(ctx, `
		SELECT property_id, client_want_id FROM matches
		WHERE kind = 'standard' AND property_id = $1`, propertyID)
}

func (r *matchRepository) ListPairKeysForClientWant(ctx context.Context, clientWantID uuid.UUID) ([]models.PairKey, error) {
	return r.listPairKeys(ctx, `
		SELECT property_id, client_want_id FROM matches
		WHERE kind = 'standard' AND client_want_id = $1`, clientWantID)
}

func (r *matchRepository) listPairKeys(ctx context.Context, query string, id uuid.UUID) ([]models.PairKey, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list match pairs: %w", err)
	}
	defer rows.Close()

	var keys []models.PairKey
	for rows.Next() {
		var k models.PairKey
		if err := rows.Scan(&k.PropertyID, &k.ClientWantID); err != nil {
			return nil, fmt.Errorf("failed to scan match pair: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match pairs: %w", err)
	}

	return keys, nil
}

func (r *matchRepository) ListAugmentedForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedMatch, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT m.id, m.kind, m.property_id, m.client_want_id, m.property_agent_id, m.client_agent_id,
		       m.status, m.status_change_requester_id, m.reopen_from_status,
		       m.property_agent_viewed, m.client_agent_viewed,
		       m.property_agent_status_viewed, m.client_agent_status_viewed,
		       m.is_super_match, m.version, m.created_at, m.updated_at,
		       a.id, a.name,
		       p.id, p.property_type, p.purpose, p.city, p.neighborhood, p.price, p.bedrooms,
		       c.id, c.property_type, c.city, c.price_min, c.price_max, c.min_bedrooms,
		       EXISTS (SELECT 1 FROM messages msg WHERE msg.match_id = m.id)
		FROM matches m
		JOIN agents a ON a.id = CASE WHEN m.property_agent_id = $1 THEN m.client_agent_id ELSE m.property_agent_id END
		LEFT JOIN properties p ON p.id = m.property_id
		LEFT JOIN client_wants c ON c.id = m.client_want_id
		WHERE m.property_agent_id = $1 OR m.client_agent_id = $1
		ORDER BY m.is_super_match DESC, m.created_at DESC, m.id`

	rows, err := scope.Conn.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for agent: %w", err)
	}
	defer rows.Close()

	var out []*models.AugmentedMatch
	for rows.Next() {
		am, err := scanAugmentedMatch(rows, agentID)
		if err != nil {
			return nil, err
		}
		out = append(out, am)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return out, nil
}

func (r *matchRepository) UpdateStatus(ctx context.Context, u models.StatusUpdate) (*models.Match, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	// The actor has seen the change they made; the other side is re-notified.
	query := `
		UPDATE matches
		SET status = $4,
		    status_change_requester_id = $5,
		    reopen_from_status = $6,
		    property_agent_status_viewed = ($7::text = 'property_agent'),
		    client_agent_status_viewed = ($7::text = 'client_agent'),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND status = $2 AND version = $3
		RETURNING ` + matchColumns

	row := scope.Conn.QueryRow(ctx, query,
		u.MatchID,
		string(u.ExpectedStatus),
		u.ExpectedVersion,
		string(u.NewStatus),
		u.RequesterID,
		statusPtrToString(u.ReopenFromStatus),
		string(u.ActorSide),
	)

	m, err := scanMatch(row)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrStaleState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update match status: %w", err)
	}

	return m, nil
}

func (r *matchRepository) MarkViewed(ctx context.Context, id uuid.UUID, side models.MatchSide) (bool, error) {
	col, _, ok := sideColumns(side)
	if !ok {
		return false, fmt.Errorf("unknown match side %q", side)
	}
	return r.setFlag(ctx, id, col)
}

func (r *matchRepository) MarkStatusChangeViewed(ctx context.Context, id uuid.UUID, side models.MatchSide) (bool, error) {
	_, col, ok := sideColumns(side)
	if !ok {
		return false, fmt.Errorf("unknown match side %q", side)
	}
	return r.setFlag(ctx, id, col)
}

// setFlag flips a boolean column to true only when it is currently false.
func (r *matchRepository) setFlag(ctx context.Context, id uuid.UUID, column string) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query := fmt.Sprintf(`UPDATE matches SET %[1]s = true WHERE id = $1 AND %[1]s = false`, column)

	result, err := scope.Conn.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", column, err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *matchRepository) CountUnviewed(ctx context.Context, agentID uuid.UUID) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT COUNT(*) FROM matches
		WHERE kind = 'standard'
		  AND ((property_agent_id = $1 AND NOT property_agent_viewed)
		    OR (client_agent_id = $1 AND NOT client_agent_viewed))`

	var n int
	if err := scope.Conn.QueryRow(ctx, query, agentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unviewed matches: %w", err)
	}

	return n, nil
}

// Helper functions

func matchScanTargets(m *models.Match, status, reopenFrom **string, kind *string) []any {
	return []any{
		&m.ID,
		kind,
		&m.PropertyID,
		&m.ClientWantID,
		&m.PropertyAgentID,
		&m.ClientAgentID,
		status,
		&m.StatusChangeRequesterID,
		reopenFrom,
		&m.PropertyAgentViewed,
		&m.ClientAgentViewed,
		&m.PropertyAgentStatusViewed,
		&m.ClientAgentStatusViewed,
		&m.IsSuperMatch,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
}

// scanMatchInto scans a row into m. Errors are returned unwrapped so callers
// can inspect pgx.ErrNoRows and constraint violations.
func scanMatchInto(row pgx.Row, m *models.Match) error {
	var kind string
	var status, reopenFrom *string
	if err := row.Scan(matchScanTargets(m, &status, &reopenFrom, &kind)...); err != nil {
		return err
	}
	m.Kind = models.MatchKind(kind)
	if status != nil {
		m.Status = models.MatchStatus(*status)
	}
	m.ReopenFromStatus = stringToStatusPtr(reopenFrom)
	return nil
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	if err := scanMatchInto(row, &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return &m, nil
}

func scanAugmentedMatch(rows pgx.Rows, agentID uuid.UUID) (*models.AugmentedMatch, error) {
	var am models.AugmentedMatch
	var kind string
	var status, reopenFrom *string

	var (
		propID                          *uuid.UUID
		propType, propPurpose, propCity *string
		propNeighborhood                *string
		propPrice                       *float64
		propBedrooms                    *int
		cwID                            *uuid.UUID
		cwType, cwCity                  *string
		cwPriceMin, cwPriceMax          *float64
		cwMinBedrooms                   *int
	)
	targets := matchScanTargets(&am.Match, &status, &reopenFrom, &kind)
	targets = append(targets,
		&am.CounterpartAgentID, &am.CounterpartAgentName,
		&propID, &propType, &propPurpose, &propCity, &propNeighborhood, &propPrice, &propBedrooms,
		&cwID, &cwType, &cwCity, &cwPriceMin, &cwPriceMax, &cwMinBedrooms,
		&am.HasMessages,
	)

	if err := rows.Scan(targets...); err != nil {
		return nil, fmt.Errorf("failed to scan augmented match: %w", err)
	}

	am.Kind = models.MatchKind(kind)
	if status != nil {
		am.Status = models.MatchStatus(*status)
	}
	am.ReopenFromStatus = stringToStatusPtr(reopenFrom)

	if propID != nil {
		am.Property = &models.PropertySummary{
			ID:           *propID,
			PropertyType: deref(propType),
			Purpose:      deref(propPurpose),
			City:         deref(propCity),
			Neighborhood: deref(propNeighborhood),
			Price:        deref(propPrice),
			Bedrooms:     deref(propBedrooms),
		}
	}
	if cwID != nil {
		am.ClientWant = &models.ClientWantSummary{
			ID:           *cwID,
			PropertyType: deref(cwType),
			City:         deref(cwCity),
			PriceMin:     deref(cwPriceMin),
			PriceMax:     deref(cwPriceMax),
			MinBedrooms:  deref(cwMinBedrooms),
		}
	}

	if side, ok := am.SideOf(agentID); ok {
		am.Viewed = am.ViewedBy(side)
		am.StatusChangeViewed = am.StatusViewedBy(side)
	}

	return &am, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
