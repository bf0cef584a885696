package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/storefront-dev/storefront/internal/config"
	"github.com/storefront-dev/storefront/internal/logger"
	"github.com/storefront-dev/storefront/internal/server"
	"github.com/storefront-dev/storefront/internal/tasks"
	"github.com/storefront-dev/storefront/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting storefront worker")

	if cfg.Session.Store == config.StoreMemory {
		log.Fatal().Msg("SESSION_STORE=memory lives inside the gateway process, the worker cannot purge it")
	}

	// Open the session store the same way the gateway does
	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer srv.Close()
	sessions := srv.Sessions()

	// Initialize Asynq client (used by the scheduler)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})
	defer asynqClient.Close()

	// Initialize Asynq server
	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		},
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
			// Logging
			Logger: &asynqLogger{log: log},
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePurgeSessions, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandlePurgeSessions(ctx, t, sessions, logger.Component(log, "purge"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Purge.Schedule != "" {
		scheduler, err := workers.NewPurgeScheduler(asynqClient, cfg.Purge.Schedule, logger.Component(log, "scheduler"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start purge scheduler")
		}
		go scheduler.Run(ctx)
	} else {
		log.Info().Msg("Purge scheduler disabled")
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")
	cancel()

	asynqServer.Shutdown()

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger is a wrapper to make zerolog compatible with Asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
