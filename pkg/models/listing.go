package models

import (
	"time"

	"github.com/google/uuid"
)

// Purpose constants shared by properties and client wants.
const (
	PurposeSale = "sale"
	PurposeRent = "rent"
)

// Listing status constants. Client wants only use active/inactive.
const (
	ListingStatusActive   = "active"
	ListingStatusInactive = "inactive"
	ListingStatusSold     = "sold"
	ListingStatusRented   = "rented"
)

// ValidPurpose reports whether p is a known purpose.
func ValidPurpose(p string) bool {
	return p == PurposeSale || p == PurposeRent
}

// Agent is a real-estate professional (corretor). Read-only to the engine.
type Agent struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city,omitempty"`
	State     *string   `json:"state,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Property is a listed property (imóvel). Read-only to the engine.
type Property struct {
	ID           uuid.UUID `json:"id"`
	AgentID      uuid.UUID `json:"agent_id"`
	PropertyType string    `json:"property_type"`
	Purpose      string    `json:"purpose"`
	City         string    `json:"city"`
	State        *string   `json:"state,omitempty"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	Price        float64   `json:"price"`
	Bedrooms     int       `json:"bedrooms"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsActive reports whether the property can take part in new matches.
func (p *Property) IsActive() bool {
	return p.Status == ListingStatusActive
}

// ClientWant holds a buyer or renter's search criteria, owned by an agent.
// DesiredNeighborhoods is free text, comma separated.
type ClientWant struct {
	ID                   uuid.UUID `json:"id"`
	AgentID              uuid.UUID `json:"agent_id"`
	PropertyType         string    `json:"property_type"`
	Purpose              string    `json:"purpose"`
	City                 string    `json:"city"`
	State                *string   `json:"state,omitempty"`
	DesiredNeighborhoods string    `json:"desired_neighborhoods,omitempty"`
	PriceMin             float64   `json:"price_min"`
	PriceMax             float64   `json:"price_max"`
	MinBedrooms          int       `json:"min_bedrooms"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// IsActive reports whether the client want can take part in new matches.
func (c *ClientWant) IsActive() bool {
	return c.Status == ListingStatusActive
}

// PropertySummary is the property slice shown next to a match or partnership.
type PropertySummary struct {
	ID           uuid.UUID `json:"id"`
	PropertyType string    `json:"property_type"`
	Purpose      string    `json:"purpose"`
	City         string    `json:"city"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	Price        float64   `json:"price"`
	Bedrooms     int       `json:"bedrooms"`
}

// ClientWantSummary is the client want slice shown next to a match or partnership.
type ClientWantSummary struct {
	ID           uuid.UUID `json:"id"`
	PropertyType string    `json:"property_type"`
	City         string    `json:"city"`
	PriceMin     float64   `json:"price_min"`
	PriceMax     float64   `json:"price_max"`
	MinBedrooms  int       `json:"min_bedrooms"`
}
