package models

import (
	"time"

	"github.com/google/uuid"
)

// Message status constants.
const (
	MessageStatusRead   = "read"
	MessageStatusUnread = "unread"
)

// Message is one entry of a match's append-only chat log.
type Message struct {
	ID          uuid.UUID `json:"id"`
	MatchID     uuid.UUID `json:"match_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Text        string    `json:"text"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
