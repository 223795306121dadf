package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/repositories"
	"github.com/corretorconnect/match-engine/pkg/services/lifecycle"
	"github.com/corretorconnect/match-engine/pkg/services/workqueue"
)

// memStore is the shared in-memory state behind the mock repositories.
// mockTransactor snapshots it so a failed transaction leaves no trace.
type memStore struct {
	mu           sync.Mutex
	agents       map[uuid.UUID]*models.Agent
	properties   map[uuid.UUID]*models.Property
	clientWants  map[uuid.UUID]*models.ClientWant
	matches      map[uuid.UUID]*models.Match
	partnerships []*models.Partnership
	messages     []*models.Message
}

func newMemStore() *memStore {
	return &memStore{
		agents:      make(map[uuid.UUID]*models.Agent),
		properties:  make(map[uuid.UUID]*models.Property),
		clientWants: make(map[uuid.UUID]*models.ClientWant),
		matches:     make(map[uuid.UUID]*models.Match),
	}
}

type memSnapshot struct {
	matches      map[uuid.UUID]models.Match
	partnerships []models.Partnership
	messages     []models.Message
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{matches: make(map[uuid.UUID]models.Match, len(s.matches))}
	for id, m := range s.matches {
		snap.matches[id] = *m
	}
	for _, p := range s.partnerships {
		snap.partnerships = append(snap.partnerships, *p)
	}
	for _, msg := range s.messages {
		snap.messages = append(snap.messages, *msg)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = make(map[uuid.UUID]*models.Match, len(snap.matches))
	for id, m := range snap.matches {
		s.matches[id] = &m
	}
	s.partnerships = nil
	for _, p := range snap.partnerships {
		s.partnerships = append(s.partnerships, &p)
	}
	s.messages = nil
	for _, msg := range snap.messages {
		s.messages = append(s.messages, &msg)
	}
}

func (s *memStore) addAgent(name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.agents[id] = &models.Agent{ID: id, Name: name}
	return id
}

func (s *memStore) addProperty(p *models.Property) *models.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ListingStatusActive
	}
	s.properties[p.ID] = p
	return p
}

func (s *memStore) addClientWant(c *models.ClientWant) *models.ClientWant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.ListingStatusActive
	}
	s.clientWants[c.ID] = c
	return c
}

func (s *memStore) match(id uuid.UUID) models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.matches[id]
}

func (s *memStore) partnershipsFor(matchID uuid.UUID) []models.Partnership {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Partnership
	for _, p := range s.partnerships {
		if p.MatchID == matchID {
			out = append(out, *p)
		}
	}
	return out
}

// ============================================================================
// Transactor
// ============================================================================

type mockTransactor struct {
	store *memStore
	calls int
}

func (t *mockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

var _ database.Transactor = (*mockTransactor)(nil)

// ============================================================================
// Match repository
// ============================================================================

type mockMatchRepository struct {
	store *memStore

	createBatchErr  error
	updateStatusErr error
	getErr          error
	// beforeUpdate runs inside UpdateStatus, before the CAS check.
	beforeUpdate func()
}

var _ repositories.MatchRepository = (*mockMatchRepository)(nil)

func (m *mockMatchRepository) insertLocked(match *models.Match) {
	now := time.Now()
	match.ID = uuid.New()
	match.Version = 1
	match.CreatedAt = now
	match.UpdatedAt = now
	match.PropertyAgentStatusViewed = true
	match.ClientAgentStatusViewed = true
	cp := *match
	m.store.matches[match.ID] = &cp
}

func (m *mockMatchRepository) hasPairLocked(p, c uuid.UUID) bool {
	for _, existing := range m.store.matches {
		if existing.Kind == models.MatchKindStandard && *existing.PropertyID == p && *existing.ClientWantID == c {
			return true
		}
	}
	return false
}

func (m *mockMatchRepository) Create(ctx context.Context, match *models.Match) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if m.hasPairLocked(*match.PropertyID, *match.ClientWantID) {
		return apperrors.ErrDuplicatePair
	}
	m.insertLocked(match)
	return nil
}

func (m *mockMatchRepository) CreateBatch(ctx context.Context, matches []*models.Match) ([]*models.Match, error) {
	if m.createBatchErr != nil {
		return nil, m.createBatchErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var inserted []*models.Match
	for _, match := range matches {
		if m.hasPairLocked(*match.PropertyID, *match.ClientWantID) {
			continue
		}
		m.insertLocked(match)
		inserted = append(inserted, match)
	}
	return inserted, nil
}

func (m *mockMatchRepository) CreateDirectChat(ctx context.Context, match *models.Match) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if m.findDirectChatLocked(match.PropertyAgentID, match.ClientAgentID) != nil {
		return apperrors.ErrConflict
	}
	match.Kind = models.MatchKindDirectChat
	match.Status = models.MatchStatusDirectChat
	match.PropertyAgentViewed = true
	m.insertLocked(match)
	return nil
}

func (m *mockMatchRepository) findDirectChatLocked(a, b uuid.UUID) *models.Match {
	for _, existing := range m.store.matches {
		if existing.Kind != models.MatchKindDirectChat {
			continue
		}
		if (existing.PropertyAgentID == a && existing.ClientAgentID == b) ||
			(existing.PropertyAgentID == b && existing.ClientAgentID == a) {
			return existing
		}
	}
	return nil
}

func (m *mockMatchRepository) FindDirectChat(ctx context.Context, agentA, agentB uuid.UUID) (*models.Match, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	found := m.findDirectChatLocked(agentA, agentB)
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *mockMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	found, ok := m.store.matches[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *mockMatchRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	return m.GetByID(ctx, id)
}

func (m *mockMatchRepository) ListPairKeysForProperty(ctx context.Context, propertyID uuid.UUID) ([]models.PairKey, error) {
	return m.pairKeys(func(k models.PairKey) bool { return k.PropertyID == propertyID }), nil
}

func (m *mockMatchRepository) ListPairKeysForClientWant(ctx context.Context, clientWantID uuid.UUID) ([]models.PairKey, error) {
	return m.pairKeys(func(k models.PairKey) bool { return k.ClientWantID == clientWantID }), nil
}

func (m *mockMatchRepository) pairKeys(keep func(models.PairKey) bool) []models.PairKey {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var keys []models.PairKey
	for _, existing := range m.store.matches {
		if k, ok := existing.Pair(); ok && keep(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *mockMatchRepository) ListAugmentedForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedMatch, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*models.AugmentedMatch
	for _, existing := range m.store.matches {
		side, ok := existing.SideOf(agentID)
		if !ok {
			continue
		}
		counterpart, _ := existing.Counterpart(agentID)
		out = append(out, &models.AugmentedMatch{
			Match:              *existing,
			CounterpartAgentID: counterpart,
			Viewed:             existing.ViewedBy(side),
			StatusChangeViewed: existing.StatusViewedBy(side),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockMatchRepository) UpdateStatus(ctx context.Context, u models.StatusUpdate) (*models.Match, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	if m.updateStatusErr != nil {
		return nil, m.updateStatusErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	existing, ok := m.store.matches[u.MatchID]
	if !ok || existing.Status != u.ExpectedStatus || existing.Version != u.ExpectedVersion {
		return nil, apperrors.ErrStaleState
	}
	existing.Status = u.NewStatus
	existing.StatusChangeRequesterID = u.RequesterID
	existing.ReopenFromStatus = u.ReopenFromStatus
	existing.PropertyAgentStatusViewed = u.ActorSide == models.SidePropertyAgent
	existing.ClientAgentStatusViewed = u.ActorSide == models.SideClientAgent
	existing.Version++
	existing.UpdatedAt = time.Now()
	cp := *existing
	return &cp, nil
}

func (m *mockMatchRepository) MarkViewed(ctx context.Context, id uuid.UUID, side models.MatchSide) (bool, error) {
	return m.setFlag(id, side, func(match *models.Match) *bool {
		if side == models.SidePropertyAgent {
			return &match.PropertyAgentViewed
		}
		return &match.ClientAgentViewed
	})
}

func (m *mockMatchRepository) MarkStatusChangeViewed(ctx context.Context, id uuid.UUID, side models.MatchSide) (bool, error) {
	return m.setFlag(id, side, func(match *models.Match) *bool {
		if side == models.SidePropertyAgent {
			return &match.PropertyAgentStatusViewed
		}
		return &match.ClientAgentStatusViewed
	})
}

func (m *mockMatchRepository) setFlag(id uuid.UUID, side models.MatchSide, field func(*models.Match) *bool) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	existing, ok := m.store.matches[id]
	if !ok {
		return false, nil
	}
	flag := field(existing)
	if *flag {
		return false, nil
	}
	*flag = true
	return true, nil
}

func (m *mockMatchRepository) CountUnviewed(ctx context.Context, agentID uuid.UUID) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	n := 0
	for _, existing := range m.store.matches {
		if existing.Kind != models.MatchKindStandard {
			continue
		}
		if side, ok := existing.SideOf(agentID); ok && !existing.ViewedBy(side) {
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Listing repository
// ============================================================================

type mockListingRepository struct {
	store *memStore

	getPropertyErr error
	listErr        error
	updatedSince   []time.Time
}

var _ repositories.ListingRepository = (*mockListingRepository)(nil)

func (m *mockListingRepository) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	a, ok := m.store.agents[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (m *mockListingRepository) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	if m.getPropertyErr != nil {
		return nil, m.getPropertyErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.properties[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (m *mockListingRepository) GetClientWant(ctx context.Context, id uuid.UUID) (*models.ClientWant, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	c, ok := m.store.clientWants[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

// The candidate lists return everything but the source's own agent; the
// finder must still apply the full predicate.
func (m *mockListingRepository) ListCandidateClientWants(ctx context.Context, p *models.Property) ([]*models.ClientWant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*models.ClientWant
	for _, c := range m.store.clientWants {
		if c.AgentID != p.AgentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockListingRepository) ListCandidateProperties(ctx context.Context, c *models.ClientWant) ([]*models.Property, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*models.Property
	for _, p := range m.store.properties {
		if p.AgentID != c.AgentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockListingRepository) ListActivePropertyIDsUpdatedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.updatedSince = append(m.updatedSince, since)
	var ids []uuid.UUID
	for _, p := range m.store.properties {
		if p.IsActive() && !p.UpdatedAt.Before(since) {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m *mockListingRepository) ListActiveClientWantIDsUpdatedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var ids []uuid.UUID
	for _, c := range m.store.clientWants {
		if c.IsActive() && !c.UpdatedAt.Before(since) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// ============================================================================
// Partnership repository
// ============================================================================

type mockPartnershipRepository struct {
	store *memStore

	createErr error
}

var _ repositories.PartnershipRepository = (*mockPartnershipRepository)(nil)

func (m *mockPartnershipRepository) Create(ctx context.Context, p *models.Partnership) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, existing := range m.store.partnerships {
		if existing.MatchID == p.MatchID && existing.Status == models.PartnershipStatusCompleted {
			return apperrors.ErrConflict
		}
	}
	p.ID = uuid.New()
	p.Status = models.PartnershipStatusCompleted
	p.ClosedAt = time.Now()
	cp := *p
	m.store.partnerships = append(m.store.partnerships, &cp)
	return nil
}

func (m *mockPartnershipRepository) CancelCompletedForMatch(ctx context.Context, matchID uuid.UUID) (int64, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var n int64
	for _, existing := range m.store.partnerships {
		if existing.MatchID == matchID && existing.Status == models.PartnershipStatusCompleted {
			existing.Status = models.PartnershipStatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *mockPartnershipRepository) ListAugmentedForAgent(ctx context.Context, agentID uuid.UUID) ([]*models.AugmentedPartnership, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*models.AugmentedPartnership
	for _, existing := range m.store.partnerships {
		if existing.PropertyAgentID == agentID || existing.ClientAgentID == agentID {
			out = append(out, &models.AugmentedPartnership{Partnership: *existing})
		}
	}
	return out, nil
}

// ============================================================================
// Message repository
// ============================================================================

type mockMessageRepository struct {
	store *memStore
}

var _ repositories.MessageRepository = (*mockMessageRepository)(nil)

func (m *mockMessageRepository) Append(ctx context.Context, msg *models.Message) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	match, ok := m.store.matches[msg.MatchID]
	if !ok || !lifecycle.CanSendMessage(match.Status) {
		return apperrors.ErrMatchNotActive
	}
	msg.ID = uuid.New()
	msg.Status = models.MessageStatusUnread
	msg.CreatedAt = time.Now()
	cp := *msg
	m.store.messages = append(m.store.messages, &cp)
	return nil
}

func (m *mockMessageRepository) MarkRead(ctx context.Context, matchID, recipientID uuid.UUID) (int64, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var n int64
	for _, msg := range m.store.messages {
		if msg.MatchID == matchID && msg.RecipientID == recipientID && msg.Status == models.MessageStatusUnread {
			msg.Status = models.MessageStatusRead
			n++
		}
	}
	return n, nil
}

func (m *mockMessageRepository) ListByMatch(ctx context.Context, matchID uuid.UUID, limit int) ([]*models.Message, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*models.Message
	for _, msg := range m.store.messages {
		if msg.MatchID == matchID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockMessageRepository) CountUnread(ctx context.Context, agentID uuid.UUID) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	n := 0
	for _, msg := range m.store.messages {
		if msg.RecipientID != agentID || msg.Status != models.MessageStatusUnread {
			continue
		}
		switch m.store.matches[msg.MatchID].Status {
		case models.MatchStatusOpen, models.MatchStatusReopenPending, models.MatchStatusDirectChat:
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Infrastructure
// ============================================================================

type mockEventPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *mockEventPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *mockEventPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingEnqueuer captures tasks instead of running them.
type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []workqueue.Task
}

func (e *recordingEnqueuer) Enqueue(task workqueue.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
}

func (e *recordingEnqueuer) drain() []workqueue.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.tasks
	e.tasks = nil
	return out
}

type mockScopeProvider struct {
	err      error
	acquired int
	released int
}

func (p *mockScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	p.acquired++
	return ctx, func() { p.released++ }, nil
}
