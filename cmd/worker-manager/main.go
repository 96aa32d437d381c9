// cmd/worker-manager/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"booking-workers/internal/common/aws"
	"booking-workers/internal/common/camunda"
	"booking-workers/internal/common/config"
	"booking-workers/internal/common/database"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/observability"
	"booking-workers/internal/dispatch"
	"booking-workers/internal/email"
	"booking-workers/internal/notification"
	"booking-workers/internal/notification/templates"
	"booking-workers/internal/progress"
	"booking-workers/internal/realtime"
	"booking-workers/internal/repository"

	cen "booking-workers/internal/workers/notification/cleanup-expired-notifications"
	cn "booking-workers/internal/workers/notification/create-notification"
	sen "booking-workers/internal/workers/notification/send-email-notification"
	rp "booking-workers/internal/workers/progress/recalculate-progress"
	uts "booking-workers/internal/workers/progress/update-task-status"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"app":     cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics exporter unavailable", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry; snapshots are optional ---
	var indexer progress.SnapshotIndexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, progress snapshots disabled", zap.Error(err))
		} else {
			indexer = esClient
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	db := pg.GetDB()
	progressRepo := repository.NewProgressRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	registry, err := templates.LoadRegistry(cfg.Template.RegistryPath)
	if err != nil {
		zapLog.Fatal("notification templates failed to load", zap.Error(err))
	}
	zapLog.Info("Notification templates loaded", zap.Int("count", registry.Len()))

	// --- Delivery dispatcher ---
	dispatcher, err := newDispatcher(cfg, log)
	if err != nil {
		zapLog.Fatal("dispatcher init failed", zap.Error(err))
	}
	defer dispatcher.Close()

	adapter, err := newEmailAdapter(ctx, cfg, settingsRepo, rdb, log)
	if err != nil {
		zapLog.Fatal("email adapter init failed", zap.Error(err))
	}
	if err := dispatcher.Start(ctx, adapter.Deliver); err != nil {
		zapLog.Fatal("dispatcher start failed", zap.Error(err))
	}

	notifications := notification.NewService(notification.Deps{
		Store:     notificationRepo,
		Settings:  settingsRepo,
		Queue:     dispatcher,
		Templates: registry,
		Logger:    log,
	})

	// --- Realtime fan-out ---
	hub := newHub(ctx, cfg, pg, rdb, progressRepo, log, zapLog)

	progressSvc := progress.NewService(progress.Deps{
		Store:         progressRepo,
		Logger:        log,
		Cache:         rdb.GetClient(),
		CacheTTL:      time.Duration(cfg.Progress.AnalyticsCacheTTL) * time.Second,
		Notifier:      notifications,
		Broadcaster:   hub,
		Indexer:       indexer,
		SnapshotIndex: cfg.Database.Elasticsearch.ProgressIndex,
		Tracer:        obs.Tracer(),
	})

	// Task rows written outside the workers still roll up.
	if cfg.Realtime.Enabled {
		stopWatch, err := progressSvc.WatchTaskChanges(ctx, hub)
		if err != nil {
			zapLog.Warn("task change recalculation disabled", zap.Error(err))
		} else {
			defer stopWatch()
		}
	}

	if interval := time.Duration(cfg.Notifications.CleanupInterval) * time.Second; interval > 0 {
		go runCleanup(ctx, interval, notifications, log)
	}

	// --- Init Zeebe Client with retry ---
	checks := readinessChecks{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	var manager *camunda.Manager
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")

		checks["zeebe"] = zeebe.HealthCheck
		manager = camunda.NewManager(zeebe.GetClient(), obs, log)

		manager.Start(rp.TaskType, config.GetWorkerConfig(cfg, rp.TaskType),
			rp.NewHandler(progressSvc, config.GetWorkerConfig(cfg, rp.TaskType), log).Handle)
		manager.Start(uts.TaskType, config.GetWorkerConfig(cfg, uts.TaskType),
			uts.NewHandler(progressSvc, config.GetWorkerConfig(cfg, uts.TaskType), log).Handle)
		manager.Start(cn.TaskType, config.GetWorkerConfig(cfg, cn.TaskType),
			cn.NewHandler(notifications, config.GetWorkerConfig(cfg, cn.TaskType), log).Handle)
		manager.Start(sen.TaskType, config.GetWorkerConfig(cfg, sen.TaskType),
			sen.NewHandler(notificationRepo, settingsRepo, adapter, config.GetWorkerConfig(cfg, sen.TaskType), log).Handle)
		manager.Start(cen.TaskType, config.GetWorkerConfig(cfg, cen.TaskType),
			cen.NewHandler(notifications, config.GetWorkerConfig(cfg, cen.TaskType), log).Handle)

		zapLog.Info("All workers registered successfully")
	} else {
		zapLog.Warn("camunda disabled, no job workers started")
	}

	srv := newHealthServer(cfg.Server.Address, checks)
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if manager != nil {
		manager.Close()
	}
	stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}
	obs.Shutdown(shutdownCtx)

	zapLog.Info("Worker manager stopped gracefully")
}

func newDispatcher(cfg *config.Config, log logger.Logger) (dispatch.Dispatcher, error) {
	d := cfg.Notifications.Dispatch
	if d.Backend == "amqp" {
		return dispatch.DialAMQP(cfg.Notifications.AMQP.URL, cfg.Notifications.AMQP.Queue, d.Workers, log)
	}
	return dispatch.NewMemoryDispatcher(d.QueueSize, d.Workers, log), nil
}

func newEmailAdapter(ctx context.Context, cfg *config.Config, store *repository.SettingsRepository, rdb *database.RedisClient, log logger.Logger) (*email.Adapter, error) {
	n := cfg.Notifications
	deps := email.Deps{
		Preferences: store,
		Logs:        store,
		Recipients:  store,
		Logger:      log,
	}
	if cfg.RateLimit.EmailsPerWindow > 0 {
		deps.Limiter = email.NewRedisLimiter(rdb.GetClient(), cfg.RateLimit.EmailsPerWindow,
			time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
	}

	if n.Email.Enabled || n.SMS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		if n.Email.Enabled {
			deps.SES = aws.NewSESClient(awsCfg)
		}
		if n.SMS.Enabled {
			deps.SNS = aws.NewSNSClient(awsCfg)
		}
	}

	return email.NewAdapter(email.Config{
		FromEmail:    n.Email.FromEmail,
		ReplyTo:      n.Email.ReplyTo,
		BaseURL:      cfg.App.BaseURL,
		AppName:      cfg.App.Name,
		DefaultStyle: email.ParseStyle(n.Email.DefaultStyle),
		Timeout:      config.GetDuration(n.Email.Timeout),
		SMSEnabled:   n.SMS.Enabled,
		SMSSenderID:  n.SMS.SenderID,
	}, deps), nil
}

// newHub builds the realtime hub. Without a change listener it still serves broadcasts.
func newHub(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, rdb *database.RedisClient, resolver realtime.BookingResolver, log logger.Logger, zapLog *zap.Logger) *realtime.Hub {
	var bus realtime.Bus = realtime.NewLocalBus()
	if cfg.Realtime.BroadcastBackend == "redis" {
		bus = realtime.NewRedisBus(rdb.GetClient(), log)
	}
	if !cfg.Realtime.Enabled {
		return realtime.NewHub(nil, bus, log)
	}

	listener := pg.NewListener(
		config.GetDuration(cfg.Realtime.MinReconnectInterval),
		config.GetDuration(cfg.Realtime.MaxReconnectInterval),
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				zapLog.Warn("change listener event", zap.Int("event", int(ev)), zap.Error(err))
			}
		},
	)
	source, err := realtime.NewPGSource(listener, resolver, log)
	if err != nil {
		zapLog.Error("change listener unavailable, row subscriptions disabled", zap.Error(err))
		_ = listener.Close()
		return realtime.NewHub(nil, bus, log)
	}
	go func() {
		if err := source.Run(ctx); err != nil {
			zapLog.Warn("change listener stopped", zap.Error(err))
		}
	}()
	return realtime.NewHub(source, bus, log)
}

func runCleanup(ctx context.Context, interval time.Duration, svc *notification.Service, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.CleanupExpiredNotifications(ctx); err != nil {
				log.Warn("expired notification cleanup failed", map[string]interface{}{"error": err})
			}
		}
	}
}
