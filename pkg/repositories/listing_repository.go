package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
)

// ListingRepository reads agents, properties and client wants. The engine
// never writes these tables.
type ListingRepository interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	GetClientWant(ctx context.Context, id uuid.UUID) (*models.ClientWant, error)

	// ListCandidateClientWants pre-filters active client wants of other agents
	// that could match p (purpose, price and bedroom bounds). City is left to
	// the compatibility predicate, whose Unicode folding SQL cannot reproduce,
	// so callers must always apply it.
	ListCandidateClientWants(ctx context.Context, p *models.Property) ([]*models.ClientWant, error)

	// ListCandidateProperties is the mirror of ListCandidateClientWants.
	ListCandidateProperties(ctx context.Context, c *models.ClientWant) ([]*models.Property, error)

	// ListActivePropertyIDsUpdatedSince feeds the periodic discovery sweep.
	ListActivePropertyIDsUpdatedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)

	// ListActiveClientWantIDsUpdatedSince feeds the periodic discovery sweep.
	ListActiveClientWantIDsUpdatedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

type listingRepository struct{}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository() ListingRepository {
	return &listingRepository{}
}

var _ ListingRepository = (*listingRepository)(nil)

const propertyColumns = `
	id, agent_id, property_type, purpose, city, state, neighborhood,
	price, bedrooms, status, created_at, updated_at`

const clientWantColumns = `
	id, agent_id, property_type, purpose, city, state, desired_neighborhoods,
	price_min, price_max, min_bedrooms, status, created_at, updated_at`

func (r *listingRepository) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var a models.Agent
	var city *string
	err := scope.Conn.QueryRow(ctx,
		`SELECT id, name, city, state, created_at FROM agents WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &city, &a.State, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	a.City = deref(city)

	return &a, nil
}

func (r *listingRepository) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	p, err := scanProperty(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	return p, nil
}

func (r *listingRepository) GetClientWant(ctx context.Context, id uuid.UUID) (*models.ClientWant, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + clientWantColumns + ` FROM client_wants WHERE id = $1`
	c, err := scanClientWant(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client want: %w", err)
	}

	return c, nil
}

func (r *listingRepository) ListCandidateClientWants(ctx context.Context, p *models.Property) ([]*models.ClientWant, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + clientWantColumns + `
		FROM client_wants
		WHERE status = 'active'
		  AND purpose = $1
		  AND agent_id <> $2
		  AND price_min <= $3 AND price_max >= $3
		  AND min_bedrooms <= $4
		ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, p.Purpose, p.AgentID, p.Price, p.Bedrooms)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate client wants: %w", err)
	}
	defer rows.Close()

	var out []*models.ClientWant
	for rows.Next() {
		c, err := scanClientWant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client want: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating client wants: %w", err)
	}

	return out, nil
}

func (r *listingRepository) ListCandidateProperties(ctx context.Context, c *models.ClientWant) ([]*models.Property, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE status = 'active'
		  AND purpose = $1
		  AND agent_id <> $2
		  AND price BETWEEN $3 AND $4
		  AND bedrooms >= $5
		ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, c.Purpose, c.AgentID, c.PriceMin, c.PriceMax, c.MinBedrooms)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate properties: %w", err)
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}

	return out, nil
}

func (r *listingRepository) ListActivePropertyIDsUpdatedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
		SELECT id FROM properties
		WHERE status = 'active' AND updated_at >= $1
		ORDER BY updated_at`, since)
}

func (r *listingRepository) ListActiveClientWantIDsUpdatedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
		SELECT id FROM client_wants
		WHERE status = 'active' AND updated_at >= $1
		ORDER BY updated_at`, since)
}

func (r *listingRepository) listIDs(ctx context.Context, query string, since time.Time) ([]uuid.UUID, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list updated listings: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to collect listing ids: %w", err)
	}

	return ids, nil
}

// Helper functions

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.ID,
		&p.AgentID,
		&p.PropertyType,
		&p.Purpose,
		&p.City,
		&p.State,
		&p.Neighborhood,
		&p.Price,
		&p.Bedrooms,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanClientWant(row pgx.Row) (*models.ClientWant, error) {
	var c models.ClientWant
	err := row.Scan(
		&c.ID,
		&c.AgentID,
		&c.PropertyType,
		&c.Purpose,
		&c.City,
		&c.State,
		&c.DesiredNeighborhoods,
		&c.PriceMin,
		&c.PriceMax,
		&c.MinBedrooms,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
