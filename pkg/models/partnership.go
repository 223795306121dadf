package models

import (
	"time"

	"github.com/google/uuid"
)

// Partnership status constants.
const (
	PartnershipStatusCompleted = "completed"
	PartnershipStatusCancelled = "cancelled"
)

// Partnership (parceria) is the immutable record of a concluded match.
type Partnership struct {
	ID              uuid.UUID `json:"id"`
	MatchID         uuid.UUID `json:"match_id"`
	PropertyID      uuid.UUID `json:"property_id"`
	ClientWantID    uuid.UUID `json:"client_want_id"`
	PropertyAgentID uuid.UUID `json:"property_agent_id"`
	ClientAgentID   uuid.UUID `json:"client_agent_id"`
	Status          string    `json:"status"`
	ClosedAt        time.Time `json:"closed_at"`
}

// AugmentedPartnership is the read model returned to an agent's partnership list.
type AugmentedPartnership struct {
	Partnership
	CounterpartAgentID   uuid.UUID          `json:"counterpart_agent_id"`
	CounterpartAgentName string             `json:"counterpart_agent_name"`
	Property             *PropertySummary   `json:"property,omitempty"`
	ClientWant           *ClientWantSummary `json:"client_want,omitempty"`
}
