package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toursync/internal/config"
	"toursync/internal/events"
	"toursync/internal/gateway"
	"toursync/internal/logging"
	"toursync/internal/metrics"
	"toursync/internal/ratelimit"
	"toursync/internal/service"
	"toursync/internal/store"
	"toursync/internal/updater"
	"toursync/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	st := initStore(cfg, logger)
	// Closing uses its own deadline; the signal context is already done by then.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("close store")
		}
	}()

	loc, err := cfg.Reports.Location()
	if err != nil {
		return fmt.Errorf("report timezone: %w", err)
	}

	bus := events.NewEventBus()
	reports := service.NewReportService(st, loc, logging.Component(logger, "reports"))

	deps := gateway.Deps{Store: st, Reports: reports, Events: bus}
	if cfg.Updates.FeedURL != "" {
		deps.Updates = updater.New(cfg.Updates, cfg.App.Version, bus, logger)
	} else {
		logger.Info().Msg("updates.feed_url not set, update checks disabled")
	}
	gw := gateway.New(deps, logger)
	hub := gateway.NewHub(bus, cfg.Gateway.AllowedOrigins, logger)

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	limiter := initLimiter(cfg, redisClient, logger)

	httpServer := gateway.NewServer(cfg.Gateway, gw, hub, limiter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A first connection attempt warms the store; failure is not fatal since
	// every operation connects on demand.
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	if err := st.Connect(connectCtx); err != nil {
		logger.Warn().Msg("database not reachable at startup, will retry on first request")
	}
	cancel()

	if cfg.Retention.IsEnabled() {
		retention := worker.NewRetentionWorker(st, bus, cfg.Retention.Interval, logger)
		go retention.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

func initStore(cfg *config.Config, logger *zerolog.Logger) *store.Store {
	if cfg.Mongo.InMemory {
		logger.Warn().Msg("mongo.in_memory is set, records are not persisted")
		return store.New(store.NewMemoryConnector(), logger)
	}
	return store.New(store.MongoConnector{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.ConnectTimeout,
	}, logger)
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Gateway.RateLimit.Backend != "redis" || cfg.Redis.Address == "" {
		return nil
	}

	client := ratelimit.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := ratelimit.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, rate limiting starts in memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

func initLimiter(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) ratelimit.Limiter {
	rl := cfg.Gateway.RateLimit
	if redisClient == nil {
		return ratelimit.NewTokenBucket(rl.RPS, rl.Burst)
	}

	// The window allows what the token bucket would over the same span.
	limit := int(rl.RPS*rl.Window.Seconds()) + rl.Burst
	return ratelimit.NewFailover(
		ratelimit.NewRedisWindow(redisClient, limit, rl.Window),
		ratelimit.NewFixedWindow(limit, rl.Window),
		logger,
	)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *gateway.Server, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Str("addr", cfg.Gateway.Address).Msg("gateway started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("gateway stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
