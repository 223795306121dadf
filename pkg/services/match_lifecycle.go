package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/repositories"
	"github.com/corretorconnect/match-engine/pkg/services/lifecycle"
)

// TransitionResult is the committed outcome of a lifecycle event.
type TransitionResult struct {
	Match *models.Match `json:"match"`
	// Partnership is set when the event converted the match.
	Partnership *models.Partnership `json:"partnership,omitempty"`
}

// MatchLifecycleService drives matches through the negotiation lifecycle.
type MatchLifecycleService interface {
	// TransitionMatch applies ev on behalf of actorID. The status write and
	// any partnership change commit together or not at all.
	TransitionMatch(ctx context.Context, matchID uuid.UUID, ev models.MatchEvent, actorID uuid.UUID) (*TransitionResult, error)

	// ListAugmentedMatches returns the agent's matches with display data.
	ListAugmentedMatches(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedMatch, error)
}

type matchLifecycleService struct {
	matches      repositories.MatchRepository
	partnerships repositories.PartnershipRepository
	tx           database.Transactor
	events       EventPublisher
	logger       *zap.Logger
}

// NewMatchLifecycleService creates a new lifecycle service.
func NewMatchLifecycleService(
	matches repositories.MatchRepository,
	partnerships repositories.PartnershipRepository,
	tx database.Transactor,
	events EventPublisher,
	logger *zap.Logger,
) MatchLifecycleService {
	return &matchLifecycleService{
		matches:      matches,
		partnerships: partnerships,
		tx:           tx,
		events:       events,
		logger:       logger.Named("match-lifecycle"),
	}
}

var _ MatchLifecycleService = (*matchLifecycleService)(nil)

func (s *matchLifecycleService) TransitionMatch(ctx context.Context, matchID uuid.UUID, ev models.MatchEvent, actorID uuid.UUID) (*TransitionResult, error) {
	var (
		result    *TransitionResult
		decision  *lifecycle.Decision
		cancelled int64
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.matches.GetByIDForUpdate(ctx, matchID)
		if err != nil {
			return fmt.Errorf("failed to load match: %w", err)
		}

		d, err := lifecycle.Apply(m, ev, actorID)
		if err != nil {
			return err
		}

		res := &TransitionResult{}

		if d.CreatesPartnership {
			p := newPartnership(m)
			if err := s.partnerships.Create(ctx, p); err != nil {
				return fmt.Errorf("failed to record partnership: %w", err)
			}
			res.Partnership = p
		}

		if d.CancelsPartnership {
			n, err := s.partnerships.CancelCompletedForMatch(ctx, m.ID)
			if err != nil {
				return fmt.Errorf("failed to cancel partnership: %w", err)
			}
			cancelled = n
		}

		updated, err := s.matches.UpdateStatus(ctx, d.StatusUpdate(m))
		if err != nil {
			return fmt.Errorf("failed to update match status: %w", err)
		}
		res.Match = updated

		result, decision = res, d
		return nil
	})

	transitionsTotal.WithLabelValues(string(ev), transitionLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	if result.Partnership != nil {
		partnershipsTotal.WithLabelValues(models.PartnershipStatusCompleted).Inc()
	}
	if cancelled > 0 {
		partnershipsTotal.WithLabelValues(models.PartnershipStatusCancelled).Add(float64(cancelled))
	}

	s.logger.Info("Match transitioned",
		zap.String("match_id", matchID.String()),
		zap.String("event", string(ev)),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.To)),
		zap.String("actor_id", actorID.String()))

	event := matchEvent(EventMatchStatusChanged, result.Match)
	event.ActorID = &actorID
	event.FromStatus = decision.From
	publishBestEffort(ctx, s.events, s.logger, event)

	return result, nil
}

func (s *matchLifecycleService) ListAugmentedMatches(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedMatch, error) {
	matches, err := s.matches.ListAugmentedForAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func newPartnership(m *models.Match) *models.Partnership {
	return &models.Partnership{
		MatchID:         m.ID,
		PropertyID:      *m.PropertyID,
		ClientWantID:    *m.ClientWantID,
		PropertyAgentID: m.PropertyAgentID,
		ClientAgentID:   m.ClientAgentID,
	}
}

// transitionLabel keeps the result label set small and stable.
func transitionLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrStaleState):
		return "stale"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperrors.ErrInvalidActor):
		return "invalid_actor"
	case errors.Is(err, apperrors.ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
