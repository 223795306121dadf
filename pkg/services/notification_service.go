package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/repositories"
)

// NotificationService tracks what each agent has seen and derives badge counts.
type NotificationService interface {
	// MarkMatchViewed records that agentID has seen the match. Idempotent.
	MarkMatchViewed(ctx context.Context, matchID, agentID uuid.UUID) error

	// MarkStatusChangeViewed records that agentID has seen the latest status change.
	MarkStatusChangeViewed(ctx context.Context, matchID, agentID uuid.UUID) error

	// UnreadMessageCount counts unread messages to agentID on matches whose
	// chat is still visible.
	UnreadMessageCount(ctx context.Context, agentID uuid.UUID) (int, error)

	// NewMatchCount counts standard matches agentID has not viewed.
	NewMatchCount(ctx context.Context, agentID uuid.UUID) (int, error)

	// Counts returns both badge counts.
	Counts(ctx context.Context, agentID uuid.UUID) (*models.NotificationCounts, error)
}

type notificationService struct {
	matches  repositories.MatchRepository
	messages repositories.MessageRepository
}

// NewNotificationService creates a new notification service.
func NewNotificationService(matches repositories.MatchRepository, messages repositories.MessageRepository) NotificationService {
	return &notificationService{
		matches:  matches,
		messages: messages,
	}
}

var _ NotificationService = (*notificationService)(nil)

func (s *notificationService) MarkMatchViewed(ctx context.Context, matchID, agentID uuid.UUID) error {
	side, err := s.sideOf(ctx, matchID, agentID)
	if err != nil {
		return err
	}
	if _, err := s.matches.MarkViewed(ctx, matchID, side); err != nil {
		return fmt.Errorf("failed to mark match viewed: %w", err)
	}
	return nil
}

func (s *notificationService) MarkStatusChangeViewed(ctx context.Context, matchID, agentID uuid.UUID) error {
	side, err := s.sideOf(ctx, matchID, agentID)
	if err != nil {
		return err
	}
	if _, err := s.matches.MarkStatusChangeViewed(ctx, matchID, side); err != nil {
		return fmt.Errorf("failed to mark status change viewed: %w", err)
	}
	return nil
}

func (s *notificationService) sideOf(ctx context.Context, matchID, agentID uuid.UUID) (models.MatchSide, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return "", fmt.Errorf("failed to load match: %w", err)
	}
	side, ok := m.SideOf(agentID)
	if !ok {
		return "", apperrors.ErrNotParticipant
	}
	return side, nil
}

func (s *notificationService) UnreadMessageCount(ctx context.Context, agentID uuid.UUID) (int, error) {
	n, err := s.messages.CountUnread(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

func (s *notificationService) NewMatchCount(ctx context.Context, agentID uuid.UUID) (int, error) {
	n, err := s.matches.CountUnviewed(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count new matches: %w", err)
	}
	return n, nil
}

// Counts runs sequentially; both queries use the request's one connection.
func (s *notificationService) Counts(ctx context.Context, agentID uuid.UUID) (*models.NotificationCounts, error) {
	unread, err := s.UnreadMessageCount(ctx, agentID)
	if err != nil {
		return nil, err
	}
	matches, err := s.NewMatchCount(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return &models.NotificationCounts{UnreadMessages: unread, NewMatches: matches}, nil
}
