package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/cura-labs/cura/adapters/clock"
	"github.com/cura-labs/cura/adapters/events"
	"github.com/cura-labs/cura/adapters/scheduler"
	"github.com/cura-labs/cura/adapters/store"
	"github.com/cura-labs/cura/adapters/tokenizer"
	"github.com/cura-labs/cura/authmsg"
	"github.com/cura-labs/cura/internal/config"
	"github.com/cura-labs/cura/internal/eth"
	"github.com/cura-labs/cura/internal/logging"
	"github.com/cura-labs/cura/internal/metrics"
	"github.com/cura-labs/cura/ports"
	"github.com/cura-labs/cura/service"
	transport "github.com/cura-labs/cura/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	clk := clock.System{}
	checks := map[string]transport.ReadinessCheck{}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		opts, err := redis.ParseURL(cfg.Nonce.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	storeOpts := []store.Option{
		store.WithNonceTTL(cfg.Nonce.TTL),
		store.WithConsumedGrace(cfg.Nonce.ConsumedGrace),
	}
	var nonces ports.NonceStore
	switch cfg.Nonce.Store {
	case "redis":
		nonces = store.NewRedisStore(redisClient, clk, storeOpts...)
	default:
		nonces = store.NewMemoryStore(clk, storeOpts...)
	}

	publisher, err := newPublisher(cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	authService := service.NewAuthService(
		nonces,
		authmsg.NewCodec(clk, authmsg.WithClockSkewTolerance(cfg.Auth.ClockSkewTolerance)),
		eth.NewVerifier(),
		tokenizer.NewJWTTokenizer(cfg.Auth.SessionSecret, cfg.Auth.PersistentSecret, clk),
		events.NewWatermillPublisher(publisher),
		clk,
		service.AuthConfig{
			AppName:       cfg.Auth.AppName,
			Domain:        cfg.Auth.Domain,
			URI:           cfg.Auth.URI,
			MessageMaxAge: cfg.Nonce.TTL,
			SessionTTL:    cfg.Auth.SessionTTL,
			PersistentTTL: cfg.Auth.PersistentTTL,
		},
		service.WithAuthMetrics(m),
		service.WithAuthLogger(logger),
	)

	sweeper := service.NewNonceSweeper(nonces, scheduler.NewCronScheduler(logger), cfg.Nonce.SweepInterval, m, logger)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start nonce sweeper: %w", err)
	}

	router := transport.SetupRouter(transport.RouterConfig{
		AuthService:        authService,
		EligibilityService: service.NewEligibilityService(m, logger),
		Metrics:            m,
		Gatherer:           registry,
		Logger:             logger,
		Checks:             checks,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "nonce_store", cfg.Nonce.Store, "events", cfg.Nonce.Events)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// newPublisher returns a Redis stream publisher, or an in-process channel when events stay local
func newPublisher(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) (message.Publisher, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if cfg.Nonce.Events != "redis" {
		return gochannel.NewGoChannel(gochannel.Config{}, wmLogger), nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}
	return publisher, nil
}
