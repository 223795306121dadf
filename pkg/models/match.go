package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MatchStatus values are stored verbatim in matches.status.
type MatchStatus string

const (
	MatchStatusOpen          MatchStatus = "open"
	MatchStatusReopenPending MatchStatus = "reopen_pending"
	MatchStatusConverted     MatchStatus = "converted"
	MatchStatusClosed        MatchStatus = "closed"
	MatchStatusDirectChat    MatchStatus = "direct_chat"
)

// ParseMatchStatus converts a raw string to a MatchStatus.
func ParseMatchStatus(s string) (MatchStatus, error) {
	st := MatchStatus(s)
	switch st {
	case MatchStatusOpen, MatchStatusReopenPending, MatchStatusConverted, MatchStatusClosed, MatchStatusDirectChat:
		return st, nil
	}
	return "", fmt.Errorf("unknown match status %q", s)
}

// MatchKind distinguishes property/client pairings from chat-only shells.
type MatchKind string

const (
	MatchKindStandard   MatchKind = "standard"
	MatchKindDirectChat MatchKind = "direct_chat"
)

// MatchSide identifies which half of a match an agent occupies.
type MatchSide string

const (
	SidePropertyAgent MatchSide = "property_agent"
	SideClientAgent   MatchSide = "client_agent"
)

// MatchEvent is a lifecycle event requested by one of the match's agents.
type MatchEvent string

const (
	EventConfirmConclusion MatchEvent = "confirm_conclusion"
	EventConfirmClosure    MatchEvent = "confirm_closure"
	EventRequestReopen     MatchEvent = "request_reopen"
	EventAcceptReopen      MatchEvent = "accept_reopen"
	EventRejectReopen      MatchEvent = "reject_reopen"
)

// ParseMatchEvent converts a raw string to a MatchEvent.
func ParseMatchEvent(s string) (MatchEvent, error) {
	ev := MatchEvent(s)
	switch ev {
	case EventConfirmConclusion, EventConfirmClosure, EventRequestReopen, EventAcceptReopen, EventRejectReopen:
		return ev, nil
	}
	return "", fmt.Errorf("unknown match event %q", s)
}

// PairKey identifies the (property, client want) pair of a standard match.
type PairKey struct {
	PropertyID   uuid.UUID
	ClientWantID uuid.UUID
}

// Match is a candidate pairing between a property and a client want, or a
// direct-chat shell between two agents (Kind == MatchKindDirectChat, with
// PropertyID and ClientWantID nil).
type Match struct {
	ID                        uuid.UUID    `json:"id"`
	Kind                      MatchKind    `json:"kind"`
	PropertyID                *uuid.UUID   `json:"property_id,omitempty"`
	ClientWantID              *uuid.UUID   `json:"client_want_id,omitempty"`
	PropertyAgentID           uuid.UUID    `json:"property_agent_id"`
	ClientAgentID             uuid.UUID    `json:"client_agent_id"`
	Status                    MatchStatus  `json:"status"`
	StatusChangeRequesterID   *uuid.UUID   `json:"status_change_requester_id,omitempty"`
	ReopenFromStatus          *MatchStatus `json:"reopen_from_status,omitempty"`
	PropertyAgentViewed       bool         `json:"property_agent_viewed"`
	ClientAgentViewed         bool         `json:"client_agent_viewed"`
	PropertyAgentStatusViewed bool         `json:"property_agent_status_viewed"`
	ClientAgentStatusViewed   bool         `json:"client_agent_status_viewed"`
	IsSuperMatch              bool         `json:"is_super_match"`
	Version                   int          `json:"version"`
	CreatedAt                 time.Time    `json:"created_at"`
	UpdatedAt                 time.Time    `json:"updated_at"`
}

// NewStandardMatch builds an unsaved open match for a compatible pair.
func NewStandardMatch(p *Property, c *ClientWant, superMatch bool) *Match {
	propertyID := p.ID
	clientWantID := c.ID
	return &Match{
		Kind:            MatchKindStandard,
		PropertyID:      &propertyID,
		ClientWantID:    &clientWantID,
		PropertyAgentID: p.AgentID,
		ClientAgentID:   c.AgentID,
		Status:          MatchStatusOpen,
		IsSuperMatch:    superMatch,
	}
}

// SideOf returns the side agentID occupies, or false if it is not a participant.
func (m *Match) SideOf(agentID uuid.UUID) (MatchSide, bool) {
	switch agentID {
	case m.PropertyAgentID:
		return SidePropertyAgent, true
	case m.ClientAgentID:
		return SideClientAgent, true
	}
	return "", false
}

// HasAgent reports whether agentID is one of the two parties.
func (m *Match) HasAgent(agentID uuid.UUID) bool {
	_, ok := m.SideOf(agentID)
	return ok
}

// Counterpart returns the other party's agent id.
func (m *Match) Counterpart(agentID uuid.UUID) (uuid.UUID, bool) {
	switch agentID {
	case m.PropertyAgentID:
		return m.ClientAgentID, true
	case m.ClientAgentID:
		return m.PropertyAgentID, true
	}
	return uuid.Nil, false
}

// Pair returns the pair key of a standard match. ok is false for direct chats.
func (m *Match) Pair() (PairKey, bool) {
	if m.PropertyID == nil || m.ClientWantID == nil {
		return PairKey{}, false
	}
	return PairKey{PropertyID: *m.PropertyID, ClientWantID: *m.ClientWantID}, true
}

// ViewedBy reports the viewed flag for the given side.
func (m *Match) ViewedBy(side MatchSide) bool {
	if side == SidePropertyAgent {
		return m.PropertyAgentViewed
	}
	return m.ClientAgentViewed
}

// StatusViewedBy reports the status-change-viewed flag for the given side.
func (m *Match) StatusViewedBy(side MatchSide) bool {
	if side == SidePropertyAgent {
		return m.PropertyAgentStatusViewed
	}
	return m.ClientAgentStatusViewed
}

// StatusUpdate is a compare-and-swap status write. The update only applies
// when the row still has ExpectedStatus and ExpectedVersion.
type StatusUpdate struct {
	MatchID          uuid.UUID
	ExpectedStatus   MatchStatus
	ExpectedVersion  int
	NewStatus        MatchStatus
	RequesterID      *uuid.UUID
	ReopenFromStatus *MatchStatus
	// ActorSide keeps the actor's own status-viewed flag set; the other side is reset.
	ActorSide MatchSide
}

// AugmentedMatch is the read model returned to an agent's match list.
type AugmentedMatch struct {
	Match
	CounterpartAgentID   uuid.UUID          `json:"counterpart_agent_id"`
	CounterpartAgentName string             `json:"counterpart_agent_name"`
	Property             *PropertySummary   `json:"property,omitempty"`
	ClientWant           *ClientWantSummary `json:"client_want,omitempty"`
	HasMessages          bool               `json:"has_messages"`
	Viewed               bool               `json:"viewed"`
	StatusChangeViewed   bool               `json:"status_change_viewed"`
}
