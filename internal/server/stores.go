package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storefront-dev/storefront/internal/config"
	"github.com/storefront-dev/storefront/internal/models"
	"github.com/storefront-dev/storefront/internal/session"
)

// openSessionStore builds the store selected by SESSION_STORE
func openSessionStore(cfg *config.Config, zlog zerolog.Logger) (session.Store, *gorm.DB, *redis.Client, error) {
	switch cfg.Session.Store {
	case config.StoreMemory:
		zlog.Warn().Msg("Using in-memory session store - sessions are lost on restart")
		return session.NewMemoryStore(), nil, nil, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Address, err)
		}
		zlog.Info().Str("address", cfg.Redis.Address).Msg("Using redis session store")
		return session.NewRedisStore(rdb, ""), nil, rdb, nil

	default:
		db, err := initDatabase(cfg, zlog)
		if err != nil {
			return nil, nil, nil, err
		}
		// Run database migrations
		if err := models.AutoMigrate(db); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		zlog.Info().Str("database", cfg.Database.URL).Msg("Using sqlite session store")
		return session.NewSQLStore(db), db, nil, nil
	}
}

// initDatabase initializes the database connection with production settings
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8   // Reduced for SQLite efficiency
		maxIdleConns    = 4   // Reduced proportionally
		connMaxLifetime = 300 // 5 minutes
		busyTimeout     = 5000
		cacheSize       = 10000
	)

	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode must be set first
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheSize),
		"PRAGMA temp_store=2",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	var journalMode string
	db.Raw("PRAGMA journal_mode").Scan(&journalMode)
	zlog.Debug().Str("journal_mode", journalMode).Msg("Database ready")

	return db, nil
}
