package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/logging"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/repositories"
	"github.com/corretorconnect/match-engine/pkg/services/lifecycle"
)

// chatHistoryLimit caps how many messages OpenChat returns.
const chatHistoryLimit = 500

// ChatView is a match's chat as shown to one participant.
type ChatView struct {
	Match    *models.Match     `json:"match"`
	Messages []*models.Message `json:"messages"`
	// MarkedRead is how many messages to the caller were flipped to read.
	MarkedRead int64 `json:"marked_read"`
}

// MessagingService manages the chat log attached to matches.
type MessagingService interface {
	// SendMessage appends a message from senderID to the other participant.
	// Only open matches and direct chats accept messages.
	SendMessage(ctx context.Context, matchID, senderID uuid.UUID, text string) (*models.Message, error)

	// OpenChat returns the chat history and marks messages to agentID as read.
	OpenChat(ctx context.Context, matchID, agentID uuid.UUID) (*ChatView, error)

	// StartDirectChat returns the direct chat between the two agents,
	// creating it if needed.
	StartDirectChat(ctx context.Context, initiatorID, targetAgentID uuid.UUID) (*models.Match, error)
}

type messagingService struct {
	matches  repositories.MatchRepository
	messages repositories.MessageRepository
	listings repositories.ListingRepository
	events   EventPublisher
	logger   *zap.Logger
}

// NewMessagingService creates a new messaging service.
func NewMessagingService(
	matches repositories.MatchRepository,
	messages repositories.MessageRepository,
	listings repositories.ListingRepository,
	events EventPublisher,
	logger *zap.Logger,
) MessagingService {
	return &messagingService{
		matches:  matches,
		messages: messages,
		listings: listings,
		events:   events,
		logger:   logger.Named("messaging"),
	}
}

var _ MessagingService = (*messagingService)(nil)

func (s *messagingService) SendMessage(ctx context.Context, matchID, senderID uuid.UUID, text string) (*models.Message, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}

	recipient, ok := m.Counterpart(senderID)
	if !ok {
		return nil, apperrors.ErrNotParticipant
	}
	if !lifecycle.CanSendMessage(m.Status) {
		return nil, fmt.Errorf("%w: match is %s", apperrors.ErrMatchNotActive, m.Status)
	}

	msg := &models.Message{
		MatchID:     m.ID,
		SenderID:    senderID,
		RecipientID: recipient,
		Text:        text,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	messagesSentTotal.Inc()

	s.logger.Debug("Message sent",
		zap.String("match_id", m.ID.String()),
		zap.String("sender_id", senderID.String()),
		zap.String("preview", logging.TruncateText(text, logging.MaxTextLogLength)))

	event := matchEvent(EventMessageSent, m)
	event.ActorID = &senderID
	publishBestEffort(ctx, s.events, s.logger, event)

	return msg, nil
}

func (s *messagingService) OpenChat(ctx context.Context, matchID, agentID uuid.UUID) (*ChatView, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	if !m.HasAgent(agentID) {
		return nil, apperrors.ErrNotParticipant
	}
	if !lifecycle.CanReadMessages(m.Status) {
		return nil, fmt.Errorf("%w: match is %s", apperrors.ErrMatchNotActive, m.Status)
	}

	msgs, err := s.messages.ListByMatch(ctx, m.ID, chatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	n, err := s.messages.MarkRead(ctx, m.ID, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}

	// reflect the write in the returned history
	for _, msg := range msgs {
		if msg.RecipientID == agentID {
			msg.Status = models.MessageStatusRead
		}
	}

	return &ChatView{Match: m, Messages: msgs, MarkedRead: n}, nil
}

func (s *messagingService) StartDirectChat(ctx context.Context, initiatorID, targetAgentID uuid.UUID) (*models.Match, error) {
	if initiatorID == targetAgentID {
		return nil, fmt.Errorf("%w: cannot start a chat with yourself", apperrors.ErrInvalidActor)
	}

	if _, err := s.listings.GetAgent(ctx, targetAgentID); err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	existing, err := s.matches.FindDirectChat(ctx, initiatorID, targetAgentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up direct chat: %w", err)
	}

	chat := &models.Match{PropertyAgentID: initiatorID, ClientAgentID: targetAgentID}
	err = s.matches.CreateDirectChat(ctx, chat)
	if errors.Is(err, apperrors.ErrConflict) {
		// the other agent opened it first
		return s.matches.FindDirectChat(ctx, initiatorID, targetAgentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create direct chat: %w", err)
	}

	s.logger.Info("Direct chat started",
		zap.String("match_id", chat.ID.String()),
		zap.String("initiator_id", initiatorID.String()),
		zap.String("target_id", targetAgentID.String()))

	return chat, nil
}
