package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/migrations"
	"github.com/corretorconnect/match-engine/pkg/auth"
	"github.com/corretorconnect/match-engine/pkg/config"
	"github.com/corretorconnect/match-engine/pkg/database"
	"github.com/corretorconnect/match-engine/pkg/handlers"
	"github.com/corretorconnect/match-engine/pkg/middleware"
	"github.com/corretorconnect/match-engine/pkg/repositories"
	"github.com/corretorconnect/match-engine/pkg/services"
	"github.com/corretorconnect/match-engine/pkg/services/matching"
	"github.com/corretorconnect/match-engine/pkg/services/workqueue"
)

// Version is set at build time via ldflags
var Version = "dev"

const discoveryDrainTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("trust_agent_header", cfg.Auth.TrustAgentHeader),
		zap.String("database", cfg.Database.User+"@"+cfg.Database.Host+"/"+cfg.Database.Database),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.Strings("super_match_rules", cfg.Matching.SuperMatchRules))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	connStr := cfg.Database.ConnectionString()
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migrate(connStr, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional: without it events are dropped and rankings are not cached.
	rdb, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// Repositories
	listingRepo := repositories.NewListingRepository()
	matchRepo := repositories.NewMatchRepository()
	messageRepo := repositories.NewMessageRepository()
	partnershipRepo := repositories.NewPartnershipRepository()
	followRepo := repositories.NewFollowRepository()
	metricsRepo := repositories.NewMetricsRepository()

	scopes := database.NewScopeProvider(db)
	events := services.NewEventPublisher(rdb, logger)

	superRule, err := matching.BuildRule(cfg.Matching.SuperMatchRules, cfg.Matching.TightPriceRatio, followRepo)
	if err != nil {
		logger.Fatal("Invalid super match rules", zap.Error(err))
	}

	retryCfg := workqueue.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.Discovery.MaxRetries
	queue := workqueue.New(logger,
		workqueue.WithStrategy(workqueue.NewBoundedStrategy(cfg.Discovery.Workers)),
		workqueue.WithRetryConfig(retryCfg))

	// Services
	finder := services.NewMatchFinderService(listingRepo, matchRepo, superRule,
		matching.Options{EnforceNeighborhoods: cfg.Matching.EnforceNeighborhoods},
		scopes, queue, events, logger)
	lifecycle := services.NewMatchLifecycleService(matchRepo, partnershipRepo, database.NewTransactor(), events, logger)
	partnerships := services.NewPartnershipService(lifecycle, partnershipRepo)
	notifications := services.NewNotificationService(matchRepo, messageRepo)
	messaging := services.NewMessagingService(matchRepo, messageRepo, listingRepo, events, logger)
	metrics := services.NewMetricsService(metricsRepo, cfg.Scoring.Weights(),
		services.NewRedisMetricsCache(rdb), cfg.Metrics.CacheTTL, logger)

	var sweeper *services.DiscoverySweeper
	if !cfg.Discovery.DisableSweep {
		sweeper = services.NewDiscoverySweeper(cfg.Discovery.SweepSchedule, services.DefaultSweepLookback,
			listingRepo, finder, scopes, logger)
		if err := sweeper.Start(ctx); err != nil {
			logger.Fatal("Failed to start discovery sweep", zap.Error(err))
		}
	}

	// Auth
	var validator auth.TokenValidator
	if cfg.Auth.JWTSecret != "" {
		validator = auth.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}
	if cfg.Auth.TrustAgentHeader {
		logger.Warn("Trusting " + auth.AgentIDHeader + " header, do not use outside local development")
	}
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(validator, cfg.Auth.TrustAgentHeader, logger), logger)
	scope := handlers.ScopeMiddleware(database.WithScope(db, logger))

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, db, queue, logger).RegisterRoutes(mux)
	handlers.NewListingHandler(finder, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewMatchHandler(lifecycle, partnerships, notifications, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewMessageHandler(messaging, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewPartnershipHandler(partnerships, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewNotificationHandler(notifications, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewMetricsHandler(metrics, logger).RegisterRoutes(mux, authMiddleware, scope)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpMetrics := middleware.NewHTTPMetrics(prometheus.DefaultRegisterer)
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(httpMetrics.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		logger.Info("Starting match-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}
	// Let discovery already triggered by listing saves finish before cancelling.
	drainCtx, cancelDrain := context.WithTimeout(shutdownCtx, discoveryDrainTimeout)
	if err := queue.Wait(drainCtx); err != nil {
		logger.Warn("Discovery queue not drained cleanly", zap.Error(err))
	}
	cancelDrain()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Discovery queue did not drain", zap.Error(err))
	}
	logger.Info("Stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// migrate applies pending migrations over a short-lived database/sql
// connection, which golang-migrate requires.
func migrate(connStr string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, migrations.FS, logger)
}
