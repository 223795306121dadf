package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/repositories"
)

// PartnershipService records and lists concluded matches.
type PartnershipService interface {
	// ConcludeMatch converts an open match and records its partnership in one
	// transaction.
	ConcludeMatch(ctx context.Context, matchID, actorID uuid.UUID) (*models.Partnership, error)

	// ListAugmentedPartnerships returns the agent's partnerships with display data.
	ListAugmentedPartnerships(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedPartnership, error)
}

type partnershipService struct {
	lifecycle    MatchLifecycleService
	partnerships repositories.PartnershipRepository
}

// NewPartnershipService creates a new partnership service.
func NewPartnershipService(lifecycle MatchLifecycleService, partnerships repositories.PartnershipRepository) PartnershipService {
	return &partnershipService{
		lifecycle:    lifecycle,
		partnerships: partnerships,
	}
}

var _ PartnershipService = (*partnershipService)(nil)

func (s *partnershipService) ConcludeMatch(ctx context.Context, matchID, actorID uuid.UUID) (*models.Partnership, error) {
	res, err := s.lifecycle.TransitionMatch(ctx, matchID, models.EventConfirmConclusion, actorID)
	if err != nil {
		return nil, err
	}
	return res.Partnership, nil
}

func (s *partnershipService) ListAugmentedPartnerships(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedPartnership, error) {
	list, err := s.partnerships.ListAugmentedForAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partnerships: %w", err)
	}
	return list, nil
}
