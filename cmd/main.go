package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"tradeserver/internal/adapters/config"
	"tradeserver/internal/adapters/errors/noop"
	"tradeserver/internal/adapters/errors/sentry"
	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/adapters/exchanges/binance"
	"tradeserver/internal/adapters/exchanges/ratelimit"
	"tradeserver/internal/adapters/postgres"
	"tradeserver/internal/adapters/redis"
	"tradeserver/internal/api"
	"tradeserver/internal/api/handlers"
	"tradeserver/internal/api/health"
	"tradeserver/internal/metrics"
	repository "tradeserver/internal/repository/postgres"
	"tradeserver/internal/services/market"
	positionservice "tradeserver/internal/services/position"
	"tradeserver/internal/workers"
	"tradeserver/internal/workers/trading"
	"tradeserver/pkg/errors"
	"tradeserver/pkg/logger"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Initialize metrics registry
	metrics.Init()

	// Databases
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient := initRedis(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Exchange price source with rate limiting and an optional cache
	prices := initPriceSource(cfg, redisClient, log)

	// Storage and services
	store := repository.NewStore(pgClient.DB())

	service := positionservice.NewService(store, prices, log, cfg.Trading.DefaultTable, cfg.Trading.AutoCloseComputePnL)
	tracker := positionservice.NewTracker(store, prices, log)
	recalc := positionservice.NewRecalculator(store, prices, log)
	aggregator := positionservice.NewAggregator(store, log)

	// Background workers
	scheduler := initWorkers(cfg, tracker, recalc)

	// HTTP server
	server := initServer(cfg, pgClient, redisClient, service, tracker, recalc, aggregator, prices, log)

	log.Info("System initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	waitForShutdown(ctx, cancel, cfg, server, scheduler, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initRedis connects to Redis when a host is configured. The price cache
// is optional and the service runs fine without it.
func initRedis(cfg *config.Config, log *logger.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		log.Info("Price cache disabled, exchange lookups go direct")
		return nil
	}

	client, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Warnf("Failed to connect to Redis, continuing without price cache: %v", err)
		return nil
	}

	log.Info("Price cache initialized (Redis)")
	return client
}

// initPriceSource builds the rate-limited exchange client wrapped in the
// caching price service
func initPriceSource(cfg *config.Config, cache *redis.Client, log *logger.Logger) exchanges.PriceSource {
	limiter := ratelimit.NewLimiter("binance", cfg.Exchange.RequestsPerMinute)

	client := binance.NewClient(binance.Config{
		BaseURL:       cfg.Exchange.BaseURL,
		QuoteCurrency: cfg.Exchange.QuoteCurrency,
		Interval:      cfg.Exchange.CandleInterval,
		CandleLimit:   cfg.Exchange.CandleLimit,
		HTTPClient:    &http.Client{Timeout: cfg.Exchange.HTTPTimeout},
		Limiter:       limiter,
	})

	return market.NewPriceService(client, cache, cfg.Exchange.PriceCacheTTL, log)
}

// initWorkers registers the background workers with the scheduler
func initWorkers(cfg *config.Config, tracker *positionservice.Tracker, recalc *positionservice.Recalculator) *workers.Scheduler {
	scheduler := workers.NewScheduler()

	scheduler.RegisterWorker(trading.NewProfitTracker(
		tracker,
		cfg.Workers.Tables,
		cfg.Workers.ProfitTrackerInterval,
		cfg.Workers.ProfitTrackerEnabled,
	))

	scheduler.RegisterWorker(trading.NewProfitRecalculator(
		recalc,
		cfg.Workers.Tables,
		cfg.Workers.RecalculatorInterval,
		cfg.Workers.RecalculatorEnabled,
	))

	return scheduler
}

// initServer wires all HTTP handlers into the server
func initServer(
	cfg *config.Config,
	pgClient *postgres.Client,
	redisClient *redis.Client,
	service *positionservice.Service,
	tracker *positionservice.Tracker,
	recalc *positionservice.Recalculator,
	aggregator *positionservice.Aggregator,
	prices exchanges.PriceSource,
	log *logger.Logger,
) *api.Server {
	healthHandler := health.New(log, pgClient.DB(), rawRedis(redisClient), cfg.App.Name, version)
	positionHandler := handlers.NewPositionHandler(service, tracker, recalc, aggregator, prices, log)

	return api.NewServer(api.Config{
		Server:      cfg.Server,
		ServiceName: cfg.App.Name,
		Version:     version,
	}, healthHandler, positionHandler, log)
}

// rawRedis unwraps the adapter for the health checker, preserving nil
// when the cache is disabled
func rawRedis(client *redis.Client) *goredis.Client {
	if client == nil {
		return nil
	}
	return client.Client()
}

// waitForShutdown blocks until a termination signal arrives, then stops
// everything in order
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	server *api.Server,
	scheduler *workers.Scheduler,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := scheduler.Stop(); err != nil {
		log.Errorf("Worker shutdown error: %v", err)
	}

	cancel()

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
