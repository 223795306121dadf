package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/repositories"
)

// DefaultSweepLookback is how far back the first sweep after startup looks.
const DefaultSweepLookback = 24 * time.Hour

// DiscoverySweeper periodically re-runs discovery for listings updated since
// the previous sweep, catching background runs that failed or were lost.
type DiscoverySweeper struct {
	cron     *cron.Cron
	schedule string
	listings repositories.ListingRepository
	finder   MatchFinderService
	scopes   database.ScopeProvider
	logger   *zap.Logger

	mu        sync.Mutex
	lastSweep time.Time
}

// NewDiscoverySweeper creates a sweeper for a robfig/cron schedule such as
// "@every 6h". The first sweep covers the last lookback.
func NewDiscoverySweeper(
	schedule string,
	lookback time.Duration,
	listings repositories.ListingRepository,
	finder MatchFinderService,
	scopes database.ScopeProvider,
	logger *zap.Logger,
) *DiscoverySweeper {
	named := logger.Named("discovery-sweep")
	cl := cronLogger{named.Sugar()}
	return &DiscoverySweeper{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		schedule:  schedule,
		listings:  listings,
		finder:    finder,
		scopes:    scopes,
		logger:    named,
		lastSweep: time.Now().Add(-lookback),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *DiscoverySweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Discovery sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Discovery sweep scheduled", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep, bounded by ctx.
func (s *DiscoverySweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Discovery sweep still running at shutdown")
	}
}

// Sweep schedules discovery for every active listing updated since the last
// successful sweep. Returns the number of listings scheduled.
func (s *DiscoverySweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	since := s.lastSweep
	s.mu.Unlock()

	started := time.Now()

	scoped, cleanup, err := s.scopes.WithScope(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer cleanup()

	propertyIDs, err := s.listings.ListActivePropertyIDsUpdatedSince(scoped, since)
	if err != nil {
		return 0, err
	}
	clientWantIDs, err := s.listings.ListActiveClientWantIDsUpdatedSince(scoped, since)
	if err != nil {
		return 0, err
	}

	for _, id := range propertyIDs {
		s.finder.OnPropertySaved(ctx, id)
	}
	for _, id := range clientWantIDs {
		s.finder.OnClientWantSaved(ctx, id)
	}

	s.mu.Lock()
	s.lastSweep = started
	s.mu.Unlock()

	n := len(propertyIDs) + len(clientWantIDs)
	s.logger.Info("Discovery sweep scheduled listings",
		zap.Time("since", since),
		zap.Int("properties", len(propertyIDs)),
		zap.Int("client_wants", len(clientWantIDs)))

	return n, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
