package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/corretorconnect/match-engine/pkg/models"
)

// Config holds all configuration for match-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, signing keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Matching  MatchingConfig  `yaml:"matching"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// TrustAgentHeader skips bearer token validation and takes the caller's
	// identity from the X-Agent-ID header. Local development only.
	TrustAgentHeader bool `yaml:"trust_agent_header" env:"AUTH_TRUST_AGENT_HEADER" env-default:"false"`

	// Issuer is the expected "iss" claim. Empty disables the issuer check.
	Issuer string `yaml:"issuer" env:"AUTH_ISSUER" env-default:""`

	// JWTSecret is the HS256 signing key shared with the auth service.
	JWTSecret string `yaml:"-" env:"AUTH_JWT_SECRET"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"match_engine"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"match_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration. An empty Host disables Redis;
// events are then dropped and metrics are not cached.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// MatchingConfig tunes the compatibility predicate and super-match rules.
type MatchingConfig struct {
	// EnforceNeighborhoods turns on the desired-neighborhood filter.
	EnforceNeighborhoods bool `yaml:"enforce_neighborhoods" env:"MATCHING_ENFORCE_NEIGHBORHOODS" env-default:"false"`

	// SuperMatchRules lists the rules that flag a match as super.
	// Known names: mutual_follow, tight_overlap.
	SuperMatchRules []string `yaml:"super_match_rules" env:"MATCHING_SUPER_MATCH_RULES" env-separator:"," env-default:"mutual_follow,tight_overlap"`

	// TightPriceRatio is the maximum distance of the price from the client's
	// range midpoint, as a fraction of the midpoint, for tight_overlap.
	TightPriceRatio float64 `yaml:"tight_price_ratio" env:"MATCHING_TIGHT_PRICE_RATIO" env-default:"0.05"`
}

// ScoringConfig holds the ranking point table. These are product policy.
type ScoringConfig struct {
	PartnershipPoints  int `yaml:"partnership_points" env:"SCORING_PARTNERSHIP_POINTS" env-default:"100"`
	ConversationPoints int `yaml:"conversation_points" env:"SCORING_CONVERSATION_POINTS" env-default:"15"`
	MatchPoints        int `yaml:"match_points" env:"SCORING_MATCH_POINTS" env-default:"10"`
	ListingPoints      int `yaml:"listing_points" env:"SCORING_LISTING_POINTS" env-default:"5"`
	FollowPoints       int `yaml:"follow_points" env:"SCORING_FOLLOW_POINTS" env-default:"1"`
}

// Weights converts the point table to the model used by the aggregator.
func (s ScoringConfig) Weights() models.ScoreWeights {
	return models.ScoreWeights{
		Partnership:  s.PartnershipPoints,
		Conversation: s.ConversationPoints,
		Match:        s.MatchPoints,
		Listing:      s.ListingPoints,
		Follow:       s.FollowPoints,
	}
}

// MetricsConfig controls ranking caching.
type MetricsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"METRICS_CACHE_TTL" env-default:"5m"`
}

// DiscoveryConfig controls background match discovery.
type DiscoveryConfig struct {
	// Workers bounds how many discovery tasks run at once.
	Workers int `yaml:"workers" env:"DISCOVERY_WORKERS" env-default:"4"`
	// MaxRetries is the retry budget for transient failures of one task.
	MaxRetries int `yaml:"max_retries" env:"DISCOVERY_MAX_RETRIES" env-default:"3"`
	// DisableSweep turns off the periodic re-discovery sweep.
	DisableSweep bool `yaml:"disable_sweep" env:"DISCOVERY_DISABLE_SWEEP" env-default:"false"`
	// SweepSchedule is a robfig/cron schedule, e.g. "@every 6h".
	SweepSchedule string `yaml:"sweep_schedule" env:"DISCOVERY_SWEEP_SCHEDULE" env-default:"@every 6h"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if !c.Auth.TrustAgentHeader && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required unless auth.trust_agent_header is set")
	}

	if c.Matching.TightPriceRatio < 0 || c.Matching.TightPriceRatio > 1 {
		return fmt.Errorf("matching.tight_price_ratio must be between 0 and 1, got %v", c.Matching.TightPriceRatio)
	}

	for _, name := range c.Matching.SuperMatchRules {
		switch strings.TrimSpace(name) {
		case "mutual_follow", "tight_overlap", "":
		default:
			return fmt.Errorf("unknown super match rule %q", name)
		}
	}

	s := c.Scoring
	if s.PartnershipPoints < 0 || s.ConversationPoints < 0 || s.MatchPoints < 0 || s.ListingPoints < 0 || s.FollowPoints < 0 {
		return fmt.Errorf("scoring points must not be negative")
	}

	if c.Discovery.Workers < 1 {
		return fmt.Errorf("discovery.workers must be at least 1")
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Addr returns the host:port pair for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
