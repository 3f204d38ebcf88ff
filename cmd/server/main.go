package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/skyconnfig/qdq/internal/arbiter"
	"github.com/skyconnfig/qdq/internal/config"
	"github.com/skyconnfig/qdq/internal/game"
	"github.com/skyconnfig/qdq/internal/hub"
	"github.com/skyconnfig/qdq/internal/logging"
	"github.com/skyconnfig/qdq/internal/postgres"
	"github.com/skyconnfig/qdq/internal/redis"
	"github.com/skyconnfig/qdq/internal/retry"
	"github.com/skyconnfig/qdq/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(cancel context.CancelFunc, srv *server.Server, sessionHub *hub.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		sessionHub.Stop(5 * time.Second)
		cancel()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	sessionRepo := postgres.NewSessionRepo(pool)
	questionRepo := postgres.NewQuestionRepo(pool)
	buzzLogRepo := postgres.NewBuzzLogRepo(pool)

	stateCache := redis.NewStateCache(redisClient, clock)
	tally := redis.NewTally(redisClient)
	eventBus := redis.NewEventBus(redisClient, slog.Default())

	buzzArbiter := arbiter.New(clock, cfg.TieWindow, buzzLogRepo)
	sessionHub := hub.NewHub(clock, cfg.MaxClientsPerSession, slog.Default())
	fanout := game.NewFanOut(sessionHub, eventBus, slog.Default())

	coordinator := game.NewCoordinator(
		sessionRepo,
		questionRepo,
		stateCache,
		tally,
		buzzArbiter,
		fanout,
		clock,
		cfg.LeaderboardSize,
		slog.Default(),
	)

	// Relay events published by peer instances into the local hub,
	// resubscribing with backoff after Redis outages.
	relayCtx, relayCancel := context.WithCancel(context.Background())
	go func() {
		policy := retry.Policy{
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Event relay disconnected, reconnecting", "attempt", attempt, "backoff", backoff, "error", err)
			},
		}
		err := retry.Do(relayCtx, clock, policy, func(ctx context.Context) error {
			return eventBus.Run(ctx, fanout.DeliverRemote)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Event relay stopped", "error", err)
		}
	}()

	healthChecks := []server.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: redisClient.Ping},
	}

	srv := server.NewServer(cfg, coordinator, sessionHub, healthChecks, slog.Default())

	done := runGracefulShutdown(relayCancel, srv, sessionHub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
