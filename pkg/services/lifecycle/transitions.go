// Package lifecycle defines the negotiation state machine for standard matches.
//
// Status graph:
//
//	open ──confirm_conclusion──► converted ──┐
//	  │                                      ├─request_reopen─► reopen_pending
//	  └───confirm_closure──────► closed ─────┘                       │
//	                                                                 │
//	open ◄──accept_reopen (other party)──────────────────────────────┤
//	converted|closed ◄──reject_reopen (other party, previous state)──┘
//
// direct_chat matches sit outside the graph and accept no events.
package lifecycle

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/models"
)

// actorRule says which participant may fire an event.
type actorRule int

const (
	eitherParty actorRule = iota
	// otherParty excludes whoever requested the pending change.
	otherParty
)

type transition struct {
	to    models.MatchStatus
	actor actorRule
	// toPrevious sends the match back to reopen_from_status instead of to.
	toPrevious bool
}

// validTransitions lists every allowed (from, event) pair.
var validTransitions = map[models.MatchStatus]map[models.MatchEvent]transition{
	models.MatchStatusOpen: {
		models.EventConfirmConclusion: {to: models.MatchStatusConverted, actor: eitherParty},
		models.EventConfirmClosure:    {to: models.MatchStatusClosed, actor: eitherParty},
	},
	models.MatchStatusConverted: {
		models.EventRequestReopen: {to: models.MatchStatusReopenPending, actor: eitherParty},
	},
	models.MatchStatusClosed: {
		models.EventRequestReopen: {to: models.MatchStatusReopenPending, actor: eitherParty},
	},
	models.MatchStatusReopenPending: {
		models.EventAcceptReopen: {to: models.MatchStatusOpen, actor: otherParty},
		models.EventRejectReopen: {actor: otherParty, toPrevious: true},
	},
	// direct_chat has no outgoing transitions
}

// IsTransitionAllowed reports whether ev may be fired from status `from`,
// ignoring who fires it.
func IsTransitionAllowed(from models.MatchStatus, ev models.MatchEvent) bool {
	_, ok := validTransitions[from][ev]
	return ok
}

// AllowedEvents lists the events that may be fired from status `from`.
func AllowedEvents(from models.MatchStatus) []models.MatchEvent {
	events := make([]models.MatchEvent, 0, 2)
	// fixed order keeps API output stable
	for _, ev := range []models.MatchEvent{
		models.EventConfirmConclusion,
		models.EventConfirmClosure,
		models.EventRequestReopen,
		models.EventAcceptReopen,
		models.EventRejectReopen,
	} {
		if IsTransitionAllowed(from, ev) {
			events = append(events, ev)
		}
	}
	return events
}

// Decision is the outcome of applying an event to a match. It is turned into
// a compare-and-swap StatusUpdate by the caller.
type Decision struct {
	Event            models.MatchEvent
	From             models.MatchStatus
	To               models.MatchStatus
	RequesterID      *uuid.UUID
	ReopenFromStatus *models.MatchStatus
	ActorSide        models.MatchSide

	// CreatesPartnership is set for confirm_conclusion.
	CreatesPartnership bool
	// CancelsPartnership is set when a reopen of a converted match is accepted.
	CancelsPartnership bool
}

// StatusUpdate builds the CAS write for d against m's current version.
func (d *Decision) StatusUpdate(m *models.Match) models.StatusUpdate {
	return models.StatusUpdate{
		MatchID:          m.ID,
		ExpectedStatus:   d.From,
		ExpectedVersion:  m.Version,
		NewStatus:        d.To,
		RequesterID:      d.RequesterID,
		ReopenFromStatus: d.ReopenFromStatus,
		ActorSide:        d.ActorSide,
	}
}

// Apply validates ev fired by actorID against m and returns the resulting
// decision. m is not modified.
func Apply(m *models.Match, ev models.MatchEvent, actorID uuid.UUID) (*Decision, error) {
	side, ok := m.SideOf(actorID)
	if !ok {
		return nil, apperrors.ErrNotParticipant
	}

	if m.Kind == models.MatchKindDirectChat {
		return nil, fmt.Errorf("%w: direct chats have no lifecycle", apperrors.ErrInvalidTransition)
	}

	t, ok := validTransitions[m.Status][ev]
	if !ok {
		return nil, fmt.Errorf("%w: %s not allowed from %s", apperrors.ErrInvalidTransition, ev, m.Status)
	}

	if t.actor == otherParty && m.StatusChangeRequesterID != nil && *m.StatusChangeRequesterID == actorID {
		return nil, fmt.Errorf("%w: the agent who requested the reopen cannot %s it", apperrors.ErrInvalidActor, ev)
	}

	d := &Decision{
		Event:     ev,
		From:      m.Status,
		To:        t.to,
		ActorSide: side,
	}

	switch ev {
	case models.EventConfirmConclusion:
		d.CreatesPartnership = true
	case models.EventRequestReopen:
		requester := actorID
		from := m.Status
		d.RequesterID = &requester
		d.ReopenFromStatus = &from
	case models.EventAcceptReopen:
		d.CancelsPartnership = previousStatus(m) == models.MatchStatusConverted
	}

	if t.toPrevious {
		d.To = previousStatus(m)
	}

	return d, nil
}

// previousStatus is the status a pending reopen came from. Rows written
// before reopen_from_status existed fall back to closed.
func previousStatus(m *models.Match) models.MatchStatus {
	if m.ReopenFromStatus != nil {
		return *m.ReopenFromStatus
	}
	return models.MatchStatusClosed
}

// CanSendMessage reports whether new messages may be appended in status s.
func CanSendMessage(s models.MatchStatus) bool {
	return s == models.MatchStatusOpen || s == models.MatchStatusDirectChat
}

// CanReadMessages reports whether the chat history is still shown in status s.
func CanReadMessages(s models.MatchStatus) bool {
	return CanSendMessage(s) || s == models.MatchStatusReopenPending
}
