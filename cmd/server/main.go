package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staysync/internal/api"
	"staysync/internal/config"
	"staysync/internal/database"
	"staysync/internal/domain"
	"staysync/internal/events"
	"staysync/internal/feed"
	"staysync/internal/logging"
	"staysync/internal/metrics"
	"staysync/internal/models"
	"staysync/internal/repository"
	"staysync/internal/service"
	"staysync/internal/worker"

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

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedSources(ctx, cfg, db, logger); err != nil {
		return err
	}

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	var state domain.StateRepository
	if redisClient != nil {
		state = repository.NewRedisStateRepository(redisClient, 0)
	}

	startMetrics(ctx, cfg, logger)

	eventBus := events.NewEventBus()
	subscribeNotifications(eventBus, logger)
	fetcher := feed.NewFetcher(cfg.Sync, logger)
	parser := feed.NewParser(logger)

	bookings := service.NewBookingService(db, eventBus, logger)
	detector := service.NewConflictDetector(db, db, eventBus, logger)
	actions := service.NewActionService(db, db, eventBus, logger)
	syncSvc := service.NewSyncService(cfg.Property.ID, fetcher, parser,
		bookings, detector, actions, db, db, state, eventBus, logger)

	var backup worker.BackupRunner
	backupSpec := ""
	if cfg.Backup.Enabled {
		backup = database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		backupSpec = cfg.Backup.Schedule
	}

	scheduler := worker.NewScheduler(cfg.Property.ID, syncSvc, actions, db,
		backup, backupSpec, cfg.Sync.IntervalMinutes, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("start scheduler")
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, db, detector, actions, scheduler,
		state, cfg.Property.ID, logger)

	return serve(ctx, cfg, httpServer, scheduler, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server").Logger()

	return cfg, &logger, closer, nil
}

// seedSources upserts every configured calendar source at boot. The database
// keeps last-sync state across restarts; config only defines the feeds.
func seedSources(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	for _, src := range cfg.Sources {
		source := &models.CalendarSource{
			PropertyID:   cfg.Property.ID,
			Name:         src.Name,
			Platform:     models.Platform(src.Platform),
			FeedURL:      src.FeedURL,
			SyncEnabled:  src.SyncEnabled,
			SyncInterval: src.IntervalMinutes,
		}
		if err := db.UpsertSource(ctx, source); err != nil {
			logger.Error().Err(err).Str("source", src.Name).Msg("seed source")
			return err
		}
		logger.Info().
			Str("source", src.Name).
			Str("platform", src.Platform).
			Bool("enabled", src.SyncEnabled).
			Msg("source registered")
	}
	return nil
}

// subscribeNotifications is the notification boundary. Conflicts and actions
// are surfaced in the log stream; a real notifier would hang off these events.
func subscribeNotifications(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.EventConflictDetected, func(event *events.Event) error {
		var payload events.ConflictEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		logger.Warn().
			Int64("conflict_id", payload.ConflictID).
			Str("type", payload.ConflictType).
			Str("severity", payload.Severity).
			Msg("conflict detected")
		return nil
	})

	bus.Subscribe(events.EventActionCreated, func(event *events.Event) error {
		logger.Info().RawJSON("action", event.Payload).Msg("sync action created")
		return nil
	})
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(
	ctx context.Context,
	cfg *config.Config,
	httpServer *api.HTTPServer,
	scheduler *worker.Scheduler,
	logger *zerolog.Logger,
) error {
	go func() {
		if !cfg.API.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Int64("property_id", cfg.Property.ID).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
