package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
)

// Fixtures inserts agents and listings through the scope in ctx. The engine
// never writes these tables itself, so tests seed them directly.
type Fixtures struct {
	t   *testing.T
	ctx context.Context
}

// NewFixtures binds fixture helpers to a scoped context.
func NewFixtures(ctx context.Context, t *testing.T) *Fixtures {
	return &Fixtures{t: t, ctx: ctx}
}

func (f *Fixtures) exec(query string, args ...any) {
	f.t.Helper()
	scope, ok := database.GetScope(f.ctx)
	if !ok {
		f.t.Fatal("no database scope in fixture context")
	}
	if _, err := scope.Conn.Exec(f.ctx, query, args...); err != nil {
		f.t.Fatalf("fixture insert failed: %v", err)
	}
}

// Agent inserts an agent and returns its id.
func (f *Fixtures) Agent(name, city, state string) uuid.UUID {
	f.t.Helper()
	id := uuid.New()
	f.exec(`INSERT INTO agents (id, name, city, state) VALUES ($1, $2, $3, $4)`,
		id, name, city, nullIfEmpty(state))
	return id
}

// Property inserts p, filling ID and timestamps when unset.
func (f *Fixtures) Property(p *models.Property) *models.Property {
	f.t.Helper()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ListingStatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	f.exec(`
		INSERT INTO properties (id, agent_id, property_type, purpose, city, state, neighborhood,
		                        price, bedrooms, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.AgentID, p.PropertyType, p.Purpose, p.City, p.State, p.Neighborhood,
		p.Price, p.Bedrooms, p.Status, p.CreatedAt, p.UpdatedAt)
	return p
}

// ClientWant inserts c, filling ID and timestamps when unset.
func (f *Fixtures) ClientWant(c *models.ClientWant) *models.ClientWant {
	f.t.Helper()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.ListingStatusActive
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	f.exec(`
		INSERT INTO client_wants (id, agent_id, property_type, purpose, city, state, desired_neighborhoods,
		                          price_min, price_max, min_bedrooms, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.AgentID, c.PropertyType, c.Purpose, c.City, c.State, c.DesiredNeighborhoods,
		c.PriceMin, c.PriceMax, c.MinBedrooms, c.Status, c.CreatedAt, c.UpdatedAt)
	return c
}

// Follow records follower -> followed.
func (f *Fixtures) Follow(follower, followed uuid.UUID) {
	f.t.Helper()
	f.exec(`INSERT INTO follows (follower_id, followed_id) VALUES ($1, $2)`, follower, followed)
}

// Message inserts a chat message with an explicit timestamp.
func (f *Fixtures) Message(matchID, sender, recipient uuid.UUID, at time.Time) {
	f.t.Helper()
	f.exec(`INSERT INTO messages (match_id, sender_id, recipient_id, text, created_at) VALUES ($1, $2, $3, 'hi', $4)`,
		matchID, sender, recipient, at)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
