package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/imagehub/storage-pipeline/internal/api"
	"github.com/imagehub/storage-pipeline/internal/bus"
	"github.com/imagehub/storage-pipeline/internal/config"
	"github.com/imagehub/storage-pipeline/internal/db"
	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/feed"
	"github.com/imagehub/storage-pipeline/internal/mailer"
	"github.com/imagehub/storage-pipeline/internal/metrics"
	"github.com/imagehub/storage-pipeline/internal/queue"
	"github.com/imagehub/storage-pipeline/internal/ratelimiter"
	"github.com/imagehub/storage-pipeline/internal/repository"
	"github.com/imagehub/storage-pipeline/internal/service"
	"github.com/imagehub/storage-pipeline/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	changeFeed := feed.New(cfg.FeedBuffer)
	repo := repository.NewPgRecordRepository(pool, changeFeed)

	// The dead-letter queue has no redelivery policy of its own: its
	// consumer settles every message on first delivery.
	dlq := queue.New(queue.Config{
		MaxAttempts:       1,
		VisibilityTimeout: cfg.VisibilityTimeout,
	})
	q := queue.NewWithDeadLetter(queue.Config{
		MaxAttempts:       cfg.MaxAttempts,
		VisibilityTimeout: cfg.VisibilityTimeout,
		PropagationDelay:  cfg.PropagationDelay,
	}, dlq)

	limiter := ratelimiter.New(cfg.MailRateLimit)
	onSent, onDropped := m.MailerHooks()
	htmlMailer := mailer.NewHTTPMailer(cfg.MailAPIURL, cfg.MailFrom, cfg.MailTimeout)
	dispatcher := mailer.NewDispatcher(htmlMailer, limiter, logger, onSent, onDropped)

	// ---- subscription bus ----
	// Registration order is evaluation order; a single event may match
	// several destinations.
	b := bus.New(logger)
	b.OnUnmatched(func() { m.EventsUnmatched.Inc() })

	b.Subscribe("confirmation-mailer", bus.KindIs(domain.KindCreated),
		func(ctx context.Context, ev domain.Event) error {
			dispatcher.Dispatch(ctx, domain.NotificationTask{
				Kind:      domain.TaskConfirmation,
				Recipient: cfg.MailTo,
				Context: map[string]string{
					"source_container": ev.SourceContainer,
					"resource_key":     ev.ResourceKey,
				},
			})
			return nil
		})

	b.Subscribe("record-processor", bus.NamePrefix("ObjectCreated"),
		func(ctx context.Context, ev domain.Event) error {
			q.Enqueue(ev)
			return nil
		})

	b.Subscribe("record-remover", bus.KindIs(domain.KindRemoved),
		func(ctx context.Context, ev domain.Event) error {
			return repo.Delete(ctx, ev.ResourceKey)
		})

	b.Subscribe("description-updater", bus.KindIs(domain.KindUpdated),
		func(ctx context.Context, ev domain.Event) error {
			desc := ev.Attribute("description")
			if desc == "" {
				return nil
			}
			err := repo.UpdateDescription(ctx, ev.ResourceKey, desc)
			if errors.Is(err, domain.ErrNotFound) {
				// The record may not have been processed yet; drop rather
				// than fail the whole publish.
				return nil
			}
			return err
		})

	svc := service.NewPipelineService(b, repo, logger,
		func() { m.EventsAccepted.Inc() },
		func() { m.EventsMalformed.Inc() },
	)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onProcessed, onFailed := m.WorkerHooks()
	wp := worker.NewPool(cfg.Workers, q, repo, cfg.BatchSize, cfg.BatchWait, logger, worker.MetricHooks{
		OnProcessed: onProcessed,
		OnFailed:    onFailed,
	})
	wp.Start(workerCtx)

	dlqWorker := worker.NewDeadLetterWorker(dlq, dispatcher, cfg.MailTo,
		cfg.BatchSize, cfg.BatchWait, logger,
		func() { m.MessagesRejected.Inc() })
	go dlqWorker.Run(workerCtx)

	notifier := worker.NewChangeNotifier(changeFeed, dispatcher, cfg.MailTo, logger)
	go notifier.Run(workerCtx)

	// Periodically mirror queue depths into the Prometheus gauges.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				ready, inflight, _ := q.Depths()
				deadReady, deadInflight, deadDelayed := dlq.Depths()
				m.QueueDepthReady.Set(float64(ready))
				m.QueueDepthFlight.Set(float64(inflight))
				m.QueueDepthDead.Set(float64(deadReady + deadInflight + deadDelayed))
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(svc, q, dlq, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all background goroutines to stop.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish their current batch.
	wp.Wait()

	logger.Info("server stopped cleanly")
}
