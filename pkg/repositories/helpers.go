package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/corretorconnect/match-engine/pkg/models"
)

// Unique index names from migrations.
const (
	constraintMatchPair        = "uq_matches_pair"
	constraintDirectChatPair   = "uq_matches_direct_chat"
	constraintCompletedByMatch = "uq_partnerships_completed_match"
	pgUniqueViolation          = "23505"
)

// isUniqueViolation reports whether err is a 23505 on the named index.
// An empty name matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func statusPtrToString(s *models.MatchStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func stringToStatusPtr(s *string) *models.MatchStatus {
	if s == nil {
		return nil
	}
	v := models.MatchStatus(*s)
	return &v
}

// sideColumns returns the viewed and status-viewed column names for side.
// The names are constants, never caller input.
func sideColumns(side models.MatchSide) (viewed, statusViewed string, ok bool) {
	switch side {
	case models.SidePropertyAgent:
		return "property_agent_viewed", "property_agent_status_viewed", true
	case models.SideClientAgent:
		return "client_agent_viewed", "client_agent_status_viewed", true
	}
	return "", "", false
}
