package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
)

// MessageRepository is the append-only chat log attached to matches.
type MessageRepository interface {
	// Append stores msg as unread and fills its id and timestamp. The insert
	// only happens while the match accepts messages (open or direct_chat);
	// otherwise it returns apperrors.ErrMatchNotActive. The match row is
	// share-locked for the insert, so it serializes with status transitions.
	Append(ctx context.Context, msg *models.Message) error

	// MarkRead flips every unread message to recipientID on the match to read.
	// Returns the number of messages changed.
	MarkRead(ctx context.Context, matchID, recipientID uuid.UUID) (int64, error)

	// ListByMatch returns the match's messages oldest first.
	ListByMatch(ctx context.Context, matchID uuid.UUID, limit int) ([]*models.Message, error)

	// CountUnread counts unread messages addressed to agentID on matches that
	// still show their chat (open, reopen_pending, direct_chat).
	CountUnread(ctx context.Context, agentID uuid.UUID) (int, error)
}

type messageRepository struct{}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository() MessageRepository {
	return &messageRepository{}
}

var _ MessageRepository = (*messageRepository)(nil)

func (r *messageRepository) Append(ctx context.Context, msg *models.Message) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO messages (match_id, sender_id, recipient_id, text, status)
		SELECT m.id, $2, $3, $4, 'unread'
		FROM matches m
		WHERE m.id = $1 AND m.status IN ('open', 'direct_chat')
		FOR SHARE
		RETURNING id, status, created_at`

	err := scope.Conn.QueryRow(ctx, query, msg.MatchID, msg.SenderID, msg.RecipientID, msg.Text).
		Scan(&msg.ID, &msg.Status, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: match %s no longer accepts messages", apperrors.ErrMatchNotActive, msg.MatchID)
	}
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	return nil
}

func (r *messageRepository) MarkRead(ctx context.Context, matchID, recipientID uuid.UUID) (int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE messages SET status = 'read'
		WHERE match_id = $1 AND recipient_id = $2 AND status = 'unread'`

	result, err := scope.Conn.Exec(ctx, query, matchID, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *messageRepository) ListByMatch(ctx context.Context, matchID uuid.UUID, limit int) ([]*models.Message, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT id, match_id, sender_id, recipient_id, text, status, created_at
		FROM messages
		WHERE match_id = $1
		ORDER BY created_at, id
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Message, error) {
		var m models.Message
		err := row.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.RecipientID, &m.Text, &m.Status, &m.CreatedAt)
		return &m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}

	return msgs, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, agentID uuid.UUID) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT COUNT(*)
		FROM messages msg
		JOIN matches m ON m.id = msg.match_id
		WHERE msg.recipient_id = $1
		  AND msg.status = 'unread'
		  AND m.status IN ('open', 'reopen_pending', 'direct_chat')`

	var n int
	if err := scope.Conn.QueryRow(ctx, query, agentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}

	return n, nil
}
