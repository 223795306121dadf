package models

import (
	"github.com/google/uuid"
)

// MetricScope narrows a ranking to a city and/or state. The zero value is global.
type MetricScope struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// IsGlobal reports whether the scope applies no location filter.
func (s MetricScope) IsGlobal() bool {
	return s.City == "" && s.State == ""
}

// AgentActivity holds the raw per-agent event counts a ranking is built from.
type AgentActivity struct {
	AgentID                uuid.UUID
	AgentName              string
	City                   string
	State                  *string
	PropertiesAdded        int
	ClientsAdded           int
	MatchesInitiated       int
	ConversationsInitiated int
	PartnershipsCompleted  int
	Followers              int
	Following              int
}

// ScoreWeights are the point values applied per counted event.
type ScoreWeights struct {
	Partnership  int `json:"partnership"`
	Conversation int `json:"conversation"`
	Match        int `json:"match"`
	Listing      int `json:"listing"`
	Follow       int `json:"follow"`
}

// DefaultScoreWeights returns the standard point table.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Partnership:  100,
		Conversation: 15,
		Match:        10,
		Listing:      5,
		Follow:       1,
	}
}

// Metric is one row of the agent ranking.
type Metric struct {
	AgentID                uuid.UUID `json:"agent_id"`
	AgentName              string    `json:"agent_name"`
	City                   string    `json:"city,omitempty"`
	State                  *string   `json:"state,omitempty"`
	PropertiesAdded        int       `json:"properties_added"`
	ClientsAdded           int       `json:"clients_added"`
	MatchesInitiated       int       `json:"matches_initiated"`
	ConversationsInitiated int       `json:"conversations_initiated"`
	PartnershipsCompleted  int       `json:"partnerships_completed"`
	Followers              int       `json:"followers"`
	Following              int       `json:"following"`
	ConversionRate         float64   `json:"taxa_conversao"`
	Score                  int       `json:"score"`
	Rank                   int       `json:"rank"`
}

// NotificationCounts feeds the UI badges.
type NotificationCounts struct {
	UnreadMessages int `json:"unread_messages"`
	NewMatches     int `json:"new_matches"`
}
