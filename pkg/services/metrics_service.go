package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/repositories"
	"github.com/corretorconnect/match-engine/pkg/services/matching"
)

// MetricsService builds the agent ranking.
type MetricsService interface {
	// ComputeMetrics ranks every agent in scope. A nil since means all time;
	// otherwise timestamped events before since are ignored.
	ComputeMetrics(ctx context.Context, scope models.MetricScope, since *time.Time) ([]*models.Metric, error)
}

// MetricsCache stores computed rankings. Implementations must be safe for
// concurrent use.
type MetricsCache interface {
	Get(ctx context.Context, key string) ([]*models.Metric, bool, error)
	Set(ctx context.Context, key string, metrics []*models.Metric, ttl time.Duration) error
}

type metricsService struct {
	repo    repositories.MetricsRepository
	weights models.ScoreWeights
	cache   MetricsCache
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewMetricsService creates a metrics service. cache may be nil, and a
// non-positive ttl disables caching.
func NewMetricsService(
	repo repositories.MetricsRepository,
	weights models.ScoreWeights,
	cache MetricsCache,
	ttl time.Duration,
	logger *zap.Logger,
) MetricsService {
	return &metricsService{
		repo:    repo,
		weights: weights,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.Named("metrics"),
	}
}

var _ MetricsService = (*metricsService)(nil)

func (s *metricsService) ComputeMetrics(ctx context.Context, scope models.MetricScope, since *time.Time) ([]*models.Metric, error) {
	key := metricsCacheKey(scope, since)

	if s.cachingEnabled() {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("Metrics cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			metricsCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metricsCacheTotal.WithLabelValues("miss").Inc()
	}

	// The query is shared with every caller waiting on key, so it must not
	// fail because the caller that started it went away. Do blocks that caller
	// until the query returns, which keeps its database scope alive.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		activity, err := s.repo.ListAgentActivity(shared, scope, since)
		if err != nil {
			return nil, fmt.Errorf("failed to load agent activity: %w", err)
		}

		ranked := RankAgents(activity, s.weights)

		if s.cachingEnabled() {
			if err := s.cache.Set(shared, key, ranked, s.ttl); err != nil {
				s.logger.Warn("Metrics cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return ranked, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]*models.Metric), nil
}

func (s *metricsService) cachingEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// RankAgents scores each agent, sorts by score descending then agent id,
// and assigns ranks starting at 1.
func RankAgents(activity []*models.AgentActivity, w models.ScoreWeights) []*models.Metric {
	out := make([]*models.Metric, 0, len(activity))
	for _, a := range activity {
		m := &models.Metric{
			AgentID:                a.AgentID,
			AgentName:              a.AgentName,
			City:                   a.City,
			State:                  a.State,
			PropertiesAdded:        a.PropertiesAdded,
			ClientsAdded:           a.ClientsAdded,
			MatchesInitiated:       a.MatchesInitiated,
			ConversationsInitiated: a.ConversationsInitiated,
			PartnershipsCompleted:  a.PartnershipsCompleted,
			Followers:              a.Followers,
			Following:              a.Following,
			ConversionRate:         ConversionRate(a.PartnershipsCompleted, a.MatchesInitiated),
		}
		m.Score = a.PartnershipsCompleted*w.Partnership +
			a.ConversationsInitiated*w.Conversation +
			a.MatchesInitiated*w.Match +
			(a.PropertiesAdded+a.ClientsAdded)*w.Listing +
			(a.Followers+a.Following)*w.Follow
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AgentID.String() < out[j].AgentID.String()
	})

	for i, m := range out {
		m.Rank = i + 1
	}
	return out
}

// ConversionRate is partnerships / matches, or 0 when there are no matches.
func ConversionRate(partnerships, matches int) float64 {
	if matches <= 0 {
		return 0
	}
	return float64(partnerships) / float64(matches)
}

// MonthStart returns midnight on the first day of now's month, in now's location.
func MonthStart(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}

func metricsCacheKey(scope models.MetricScope, since *time.Time) string {
	window := "all"
	if since != nil {
		window = since.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("metrics:v1:%s:%s:%s", matching.Fold(scope.City), matching.Fold(scope.State), window)
}

// redisMetricsCache stores rankings as JSON strings.
type redisMetricsCache struct {
	rdb *redis.Client
}

// NewRedisMetricsCache returns a Redis-backed cache, or nil when rdb is nil.
func NewRedisMetricsCache(rdb *redis.Client) MetricsCache {
	if rdb == nil {
		return nil
	}
	return &redisMetricsCache{rdb: rdb}
}

func (c *redisMetricsCache) Get(ctx context.Context, key string) ([]*models.Metric, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var metrics []*models.Metric
	if err := json.Unmarshal(raw, &metrics); err != nil {
		return nil, false, fmt.Errorf("decode cached metrics: %w", err)
	}
	return metrics, true, nil
}

func (c *redisMetricsCache) Set(ctx context.Context, key string, metrics []*models.Metric, ttl time.Duration) error {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}
