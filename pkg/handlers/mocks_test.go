package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/corretorconnect/match-engine/pkg/auth"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/services"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type mockMatchFinder struct {
	created       []*models.Match
	err           error
	savedProps    []uuid.UUID
	savedWants    []uuid.UUID
	findPropCalls []uuid.UUID
}

func (m *mockMatchFinder) FindMatchesForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Match, error) {
	m.findPropCalls = append(m.findPropCalls, propertyID)
	return m.created, m.err
}

func (m *mockMatchFinder) FindMatchesForClientWant(ctx context.Context, clientWantID uuid.UUID) ([]*models.Match, error) {
	return m.created, m.err
}

func (m *mockMatchFinder) OnPropertySaved(ctx context.Context, propertyID uuid.UUID) {
	m.savedProps = append(m.savedProps, propertyID)
}

func (m *mockMatchFinder) OnClientWantSaved(ctx context.Context, clientWantID uuid.UUID) {
	m.savedWants = append(m.savedWants, clientWantID)
}

type transitionCall struct {
	matchID uuid.UUID
	event   models.MatchEvent
	actorID uuid.UUID
}

type mockLifecycle struct {
	result  *services.TransitionResult
	matches []*models.AugmentedMatch
	err     error
	calls   []transitionCall
}

func (m *mockLifecycle) TransitionMatch(ctx context.Context, matchID uuid.UUID, ev models.MatchEvent, actorID uuid.UUID) (*services.TransitionResult, error) {
	m.calls = append(m.calls, transitionCall{matchID, ev, actorID})
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockLifecycle) ListAugmentedMatches(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedMatch, error) {
	return m.matches, m.err
}

type mockPartnerships struct {
	partnership *models.Partnership
	list        []*models.AugmentedPartnership
	err         error
}

func (m *mockPartnerships) ConcludeMatch(ctx context.Context, matchID, actorID uuid.UUID) (*models.Partnership, error) {
	return m.partnership, m.err
}

func (m *mockPartnerships) ListAugmentedPartnerships(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedPartnership, error) {
	return m.list, m.err
}

type mockNotifications struct {
	counts *models.NotificationCounts
	err    error
	viewed []uuid.UUID
	status []uuid.UUID
}

func (m *mockNotifications) MarkMatchViewed(ctx context.Context, matchID, agentID uuid.UUID) error {
	m.viewed = append(m.viewed, matchID)
	return m.err
}

func (m *mockNotifications) MarkStatusChangeViewed(ctx context.Context, matchID, agentID uuid.UUID) error {
	m.status = append(m.status, matchID)
	return m.err
}

func (m *mockNotifications) UnreadMessageCount(ctx context.Context, agentID uuid.UUID) (int, error) {
	return m.counts.UnreadMessages, m.err
}

func (m *mockNotifications) NewMatchCount(ctx context.Context, agentID uuid.UUID) (int, error) {
	return m.counts.NewMatches, m.err
}

func (m *mockNotifications) Counts(ctx context.Context, agentID uuid.UUID) (*models.NotificationCounts, error) {
	return m.counts, m.err
}

type mockMessaging struct {
	msg      *models.Message
	view     *services.ChatView
	chat     *models.Match
	err      error
	lastText string
}

func (m *mockMessaging) SendMessage(ctx context.Context, matchID, senderID uuid.UUID, text string) (*models.Message, error) {
	m.lastText = text
	return m.msg, m.err
}

func (m *mockMessaging) OpenChat(ctx context.Context, matchID, agentID uuid.UUID) (*services.ChatView, error) {
	return m.view, m.err
}

func (m *mockMessaging) StartDirectChat(ctx context.Context, initiatorID, targetAgentID uuid.UUID) (*models.Match, error) {
	return m.chat, m.err
}

type mockMetrics struct {
	ranking   []*models.Metric
	err       error
	lastScope models.MetricScope
	lastSince *time.Time
}

func (m *mockMetrics) ComputeMetrics(ctx context.Context, scope models.MetricScope, since *time.Time) ([]*models.Metric, error) {
	m.lastScope = scope
	m.lastSince = since
	return m.ranking, m.err
}

// ============================================================================
// Request helpers
// ============================================================================

// newAgentRequest builds a request as the auth middleware would leave it.
func newAgentRequest(t *testing.T, method, target string, agentID uuid.UUID, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if agentID != uuid.Nil {
		req = req.WithContext(auth.WithAgentID(req.Context(), agentID))
	}
	return req
}

func withPathID(req *http.Request, id string) *http.Request {
	req.SetPathValue("id", id)
	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) ApiResponse {
	t.Helper()
	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// decodeData re-decodes the envelope's data field into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}
