package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/models"
)

// EventChannel is the Redis pub/sub channel match events are published on.
const EventChannel = "match-events"

// Event types announced to subscribers. Payloads are hints; consumers read
// current state through the API.
const (
	EventMatchCreated       = "match.created"
	EventMatchStatusChanged = "match.status_changed"
	EventMessageSent        = "message.sent"
)

// Event is the JSON payload published on EventChannel.
type Event struct {
	Type       string             `json:"type"`
	MatchID    uuid.UUID          `json:"match_id"`
	AgentIDs   []uuid.UUID        `json:"agent_ids"`
	ActorID    *uuid.UUID         `json:"actor_id,omitempty"`
	FromStatus models.MatchStatus `json:"from_status,omitempty"`
	ToStatus   models.MatchStatus `json:"to_status,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// EventPublisher announces committed changes. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewEventPublisher returns a Redis-backed publisher, or a no-op one when
// rdb is nil (Redis not configured).
func NewEventPublisher(rdb *redis.Client, logger *zap.Logger) EventPublisher {
	if rdb == nil {
		logger.Info("Redis not configured, match events will not be published")
		return NopEventPublisher{}
	}
	return &redisEventPublisher{rdb: rdb}
}

type redisEventPublisher struct {
	rdb *redis.Client
}

var _ EventPublisher = (*redisEventPublisher)(nil)

func (p *redisEventPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, EventChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// NopEventPublisher drops every event.
type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, Event) error { return nil }

// publishBestEffort publishes and logs failures. Callers have already
// committed, so a lost event never fails the request.
func publishBestEffort(ctx context.Context, pub EventPublisher, logger *zap.Logger, event Event) {
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("type", event.Type),
			zap.String("match_id", event.MatchID.String()),
			zap.Error(err))
	}
}

func matchEvent(eventType string, m *models.Match) Event {
	return Event{
		Type:       eventType,
		MatchID:    m.ID,
		AgentIDs:   []uuid.UUID{m.PropertyAgentID, m.ClientAgentID},
		ToStatus:   m.Status,
		OccurredAt: time.Now().UTC(),
	}
}
