package setup

import (
	"context"
	"log"

	"github.com/redis/rueidis"
	"github.com/wardenhq/warden/internal/database"
	"github.com/wardenhq/warden/internal/redis"
	"github.com/wardenhq/warden/internal/setup/config"
	"github.com/wardenhq/warden/internal/stats"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config // Application configuration
	Logger       *zap.Logger    // Main application logger
	DBLogger     *zap.Logger    // Database-specific logger
	DB           database.Client
	RedisManager *redis.Manager
	StatsClient  rueidis.Client // Redis client backing the statistics counters
	LedgerClient rueidis.Client // Redis client backing the rate-limit ledger
	Stats        *stats.Client
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager, err := newLogManager(logDir, &cfg.Debug)
	if err != nil {
		return nil, err
	}

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for the various subsystems
	redisManager := redis.NewManager(&cfg.Redis, logger)

	statsRedis, err := redisManager.GetClient(redis.StatsDBIndex)
	if err != nil {
		return nil, err
	}

	ledgerRedis, err := redisManager.GetClient(redis.RatelimitDBIndex)
	if err != nil {
		return nil, err
	}

	// Database stores verification outcomes and raid history
	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, dbLogger)
	if err != nil {
		return nil, err
	}

	statsClient := stats.NewClient(statsRedis, db, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger,
		DB:           db,
		RedisManager: redisManager,
		StatsClient:  statsRedis,
		LedgerClient: ledgerRedis,
		Stats:        statsClient,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections
	s.RedisManager.Close()
}
