package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/repositories"
	"github.com/corretorconnect/match-engine/pkg/services/matching"
	"github.com/corretorconnect/match-engine/pkg/services/workqueue"
)

// Discovery sources, used in task names and metric labels.
const (
	sourceProperty   = "property"
	sourceClientWant = "client_want"
)

// MatchFinderService discovers compatible property/client-want pairs and
// records them as open matches.
type MatchFinderService interface {
	// FindMatchesForProperty pairs an active property with every compatible
	// client want not already matched to it. Returns the newly created matches.
	FindMatchesForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Match, error)

	// FindMatchesForClientWant is the mirror of FindMatchesForProperty.
	FindMatchesForClientWant(ctx context.Context, clientWantID uuid.UUID) ([]*models.Match, error)

	// OnPropertySaved schedules discovery for a property in the background.
	OnPropertySaved(ctx context.Context, propertyID uuid.UUID)

	// OnClientWantSaved schedules discovery for a client want in the background.
	OnClientWantSaved(ctx context.Context, clientWantID uuid.UUID)
}

type matchFinderService struct {
	listings repositories.ListingRepository
	matches  repositories.MatchRepository
	rule     matching.SuperMatchRule
	opts     matching.Options
	scopes   database.ScopeProvider
	queue    workqueue.TaskEnqueuer
	events   EventPublisher
	logger   *zap.Logger
}

// NewMatchFinderService creates a new match finder. rule may be nil, in
// which case no match is flagged super.
func NewMatchFinderService(
	listings repositories.ListingRepository,
	matches repositories.MatchRepository,
	rule matching.SuperMatchRule,
	opts matching.Options,
	scopes database.ScopeProvider,
	queue workqueue.TaskEnqueuer,
	events EventPublisher,
	logger *zap.Logger,
) MatchFinderService {
	return &matchFinderService{
		listings: listings,
		matches:  matches,
		rule:     rule,
		opts:     opts,
		scopes:   scopes,
		queue:    queue,
		events:   events,
		logger:   logger.Named("match-finder"),
	}
}

var _ MatchFinderService = (*matchFinderService)(nil)

func (s *matchFinderService) FindMatchesForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Match, error) {
	start := time.Now()
	created, err := s.findForProperty(ctx, propertyID)
	s.observe(sourceProperty, start, created, err)
	return created, err
}

func (s *matchFinderService) findForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Match, error) {
	p, err := s.listings.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if !p.IsActive() {
		return []*models.Match{}, nil
	}

	candidates, err := s.listings.ListCandidateClientWants(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate client wants: %w", err)
	}

	existing, err := s.matches.ListPairKeysForProperty(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing matches: %w", err)
	}
	matched := pairSet(existing)

	var pending []*models.Match
	for _, c := range candidates {
		if !matching.IsCompatible(p, c, s.opts) {
			continue
		}
		if _, ok := matched[models.PairKey{PropertyID: p.ID, ClientWantID: c.ID}]; ok {
			continue
		}
		pending = append(pending, models.NewStandardMatch(p, c, s.isSuperMatch(ctx, p, c)))
	}

	return s.insert(ctx, pending)
}

func (s *matchFinderService) FindMatchesForClientWant(ctx context.Context, clientWantID uuid.UUID) ([]*models.Match, error) {
	start := time.Now()
	created, err := s.findForClientWant(ctx, clientWantID)
	s.observe(sourceClientWant, start, created, err)
	return created, err
}

func (s *matchFinderService) findForClientWant(ctx context.Context, clientWantID uuid.UUID) ([]*models.Match, error) {
	c, err := s.listings.GetClientWant(ctx, clientWantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client want: %w", err)
	}
	if !c.IsActive() {
		return []*models.Match{}, nil
	}

	candidates, err := s.listings.ListCandidateProperties(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate properties: %w", err)
	}

	existing, err := s.matches.ListPairKeysForClientWant(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing matches: %w", err)
	}
	matched := pairSet(existing)

	var pending []*models.Match
	for _, p := range candidates {
		if !matching.IsCompatible(p, c, s.opts) {
			continue
		}
		if _, ok := matched[models.PairKey{PropertyID: p.ID, ClientWantID: c.ID}]; ok {
			continue
		}
		pending = append(pending, models.NewStandardMatch(p, c, s.isSuperMatch(ctx, p, c)))
	}

	return s.insert(ctx, pending)
}

// insert writes pending matches; pairs created concurrently by another run
// are skipped by the repository.
func (s *matchFinderService) insert(ctx context.Context, pending []*models.Match) ([]*models.Match, error) {
	if len(pending) == 0 {
		return []*models.Match{}, nil
	}

	created, err := s.matches.CreateBatch(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}
	if created == nil {
		created = []*models.Match{}
	}

	for _, m := range created {
		publishBestEffort(ctx, s.events, s.logger, matchEvent(EventMatchCreated, m))
	}

	return created, nil
}

func (s *matchFinderService) isSuperMatch(ctx context.Context, p *models.Property, c *models.ClientWant) bool {
	if s.rule == nil {
		return false
	}
	ok, err := s.rule.IsSuperMatch(ctx, p, c)
	if err != nil {
		s.logger.Warn("Super-match rule failed, treating pair as regular",
			zap.String("rule", s.rule.Name()),
			zap.String("property_id", p.ID.String()),
			zap.String("client_want_id", c.ID.String()),
			zap.Error(err))
		return false
	}
	return ok
}

func (s *matchFinderService) observe(source string, start time.Time, created []*models.Match, err error) {
	discoveryDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	discoveryRunsTotal.WithLabelValues(source, resultLabel(err)).Inc()
	for _, m := range created {
		matchesCreatedTotal.WithLabelValues(source, strconv.FormatBool(m.IsSuperMatch)).Inc()
	}
}

func (s *matchFinderService) OnPropertySaved(ctx context.Context, propertyID uuid.UUID) {
	s.schedule(sourceProperty, propertyID, s.FindMatchesForProperty)
}

func (s *matchFinderService) OnClientWantSaved(ctx context.Context, clientWantID uuid.UUID) {
	s.schedule(sourceClientWant, clientWantID, s.FindMatchesForClientWant)
}

// schedule enqueues a discovery run that acquires its own connection. The
// request context is not carried over; the task outlives the request.
func (s *matchFinderService) schedule(source string, id uuid.UUID, find func(context.Context, uuid.UUID) ([]*models.Match, error)) {
	name := "discover:" + source + ":" + id.String()
	s.queue.Enqueue(workqueue.NewFuncTask(name, func(ctx context.Context) error {
		scoped, cleanup, err := s.scopes.WithScope(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer cleanup()

		created, err := find(scoped, id)
		if err != nil {
			return err
		}

		if len(created) > 0 {
			s.logger.Info("Background discovery created matches",
				zap.String("source", source),
				zap.String("id", id.String()),
				zap.Int("count", len(created)))
		}
		return nil
	}))
}

func pairSet(keys []models.PairKey) map[models.PairKey]struct{} {
	set := make(map[models.PairKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
