package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/services/matching"
)

// serviceFixture wires every service to one in-memory store and seeds the
// São Paulo example: A1 lists P1, A2 represents client C1.
type serviceFixture struct {
	t     *testing.T
	ctx   context.Context
	store *memStore

	matchRepo       *mockMatchRepository
	listingRepo     *mockListingRepository
	partnershipRepo *mockPartnershipRepository
	messageRepo     *mockMessageRepository
	tx              *mockTransactor
	events          *mockEventPublisher
	queue           *recordingEnqueuer
	scopes          *mockScopeProvider

	a1, a2 uuid.UUID
	p1     *models.Property
	c1     *models.ClientWant
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newMemStore()
	f := &serviceFixture{
		t:               t,
		ctx:             context.Background(),
		store:           store,
		matchRepo:       &mockMatchRepository{store: store},
		listingRepo:     &mockListingRepository{store: store},
		partnershipRepo: &mockPartnershipRepository{store: store},
		messageRepo:     &mockMessageRepository{store: store},
		tx:              &mockTransactor{store: store},
		events:          &mockEventPublisher{},
		queue:           &recordingEnqueuer{},
		scopes:          &mockScopeProvider{},
	}

	sp := "SP"
	f.a1 = store.addAgent("A1")
	f.a2 = store.addAgent("A2")
	f.p1 = store.addProperty(&models.Property{
		AgentID: f.a1, Purpose: models.PurposeSale, City: "São Paulo", State: &sp,
		Price: 850000, Bedrooms: 2,
	})
	f.c1 = store.addClientWant(&models.ClientWant{
		AgentID: f.a2, Purpose: models.PurposeSale, City: "São Paulo", State: &sp,
		PriceMin: 700000, PriceMax: 900000, MinBedrooms: 2,
	})
	return f
}

func (f *serviceFixture) finder(rule matching.SuperMatchRule) MatchFinderService {
	return NewMatchFinderService(f.listingRepo, f.matchRepo, rule, matching.Options{}, f.scopes, f.queue, f.events, zap.NewNop())
}

func (f *serviceFixture) lifecycle() MatchLifecycleService {
	return NewMatchLifecycleService(f.matchRepo, f.partnershipRepo, f.tx, f.events, zap.NewNop())
}

func (f *serviceFixture) messaging() MessagingService {
	return NewMessagingService(f.matchRepo, f.messageRepo, f.listingRepo, f.events, zap.NewNop())
}

// openMatch creates the P1/C1 match directly in the store.
func (f *serviceFixture) openMatch() *models.Match {
	f.t.Helper()
	m := models.NewStandardMatch(f.p1, f.c1, false)
	if err := f.matchRepo.Create(f.ctx, m); err != nil {
		f.t.Fatalf("create match: %v", err)
	}
	return m
}

// transition fires ev and fails the test on error.
func (f *serviceFixture) transition(svc MatchLifecycleService, matchID uuid.UUID, ev models.MatchEvent, actor uuid.UUID) *TransitionResult {
	f.t.Helper()
	res, err := svc.TransitionMatch(f.ctx, matchID, ev, actor)
	if err != nil {
		f.t.Fatalf("%s by %s: %v", ev, actor, err)
	}
	return res
}
