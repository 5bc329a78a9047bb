package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"FeedSummarizer/internal/config"
	"FeedSummarizer/internal/httpapi"
	"FeedSummarizer/internal/infrastructure/llm"
	"FeedSummarizer/internal/infrastructure/parser"
	"FeedSummarizer/internal/infrastructure/queue"
	"FeedSummarizer/internal/infrastructure/scheduler"
	"FeedSummarizer/internal/infrastructure/search"
	"FeedSummarizer/internal/infrastructure/storage"
	"FeedSummarizer/internal/infrastructure/telegram"
	"FeedSummarizer/internal/logging"
	"FeedSummarizer/internal/ports"
	"FeedSummarizer/internal/usecase"
)

// worker is a dispatcher with its own consumer lifecycle.
type worker interface {
	ports.Dispatcher
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	settings  *config.Provider
	dedup     *storage.DedupRepository
	scheduler *usecase.Scheduler
	worker    worker
	server    *http.Server
}

// New opens storage and builds every component for one process.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	provider := config.NewProvider(cfg.Settings)
	dedup := storage.NewDedupRepository(db, cfg.Runs.DedupTTL)
	status := storage.NewStatusRepository(db, cfg.Runs.StatusTTL)
	kv := storage.NewSettingsRepository(db)

	sink, err := newSink(cfg.Publish, db, baseLogger.With("component", "sink"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reader := parser.NewFeedReader(&http.Client{Timeout: cfg.Fetch.Timeout}, cfg.Fetch.UserAgent)
	summarizer := llm.NewClient(cfg.LLM, cfg.Fetch.MaxChars)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Settings: provider,
		Fetcher: usecase.NewFetcher(usecase.FetcherDeps{
			Reader: reader,
			Seen:   dedup,
			Logger: baseLogger.With("component", "fetcher"),
		}),
		Summarizer: summarizer,
		Publisher:  usecase.NewPublisher(sink),
		Dedup:      dedup,
		Status:     status,
		Budget:     cfg.Fetch.Budget(),
		Logger:     baseLogger.With("component", "orchestrator"),
	})

	trigger := usecase.NewTrigger(usecase.TriggerDeps{
		Orchestrator: orchestrator,
		Locker:       storage.NewLockRepository(db),
		Status:       status,
		LockTTL:      cfg.Runs.LockTTL,
		Logger:       baseLogger.With("component", "trigger"),
	})
	w := newWorker(cfg.Queue, trigger.Execute, baseLogger.With("component", "queue"))
	if w != nil {
		trigger.SetDispatcher(w)
	}

	initial := provider.Settings()
	daily := scheduler.NewDaily(initial.ScheduleTime, initial.Location, baseLogger.With("component", "scheduler"))
	sched := usecase.NewScheduler(daily, trigger, baseLogger.With("component", "scheduler"))

	router := httpapi.NewRouter(httpapi.Deps{
		Trigger:   trigger,
		Token:     usecase.NewCronToken(kv, cfg.Cron.Token, cfg.Cron.RotateEvery),
		Feeds:     usecase.NewFeedChecker(provider, reader, cfg.Fetch.MaxItemsPerFeed),
		Processed: dedup,
		Keys:      summarizer,
		Settings:  provider,
		Schedule:  sched,
		Logger:    baseLogger.With("component", "http"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		settings:  provider,
		dedup:     dedup,
		scheduler: sched,
		worker:    w,
		server: &http.Server{
			Addr:         cfg.Server.BindAddr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

func newSink(cfg config.PublishConfig, db *sql.DB, log *slog.Logger) (ports.PostSink, error) {
	var sink ports.PostSink = storage.NewPostRepository(db)
	if cfg.Sink == "elasticsearch" {
		index, err := search.New(cfg.ElasticAddr, cfg.ElasticIndex, log)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Runs report publish errors on their own; an unreachable index only warns here.
		if err := index.Ping(pingCtx); err != nil {
			log.Warn("elasticsearch unreachable at startup", "addr", cfg.ElasticAddr, "err", err)
		} else {
			log.Info("connected to elasticsearch", "addr", cfg.ElasticAddr, "index", cfg.ElasticIndex)
		}
		sink = index
	}
	if cfg.TelegramToken != "" {
		sink = telegram.NewAnnouncingSink(sink, telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID, ""), log)
	}
	return sink, nil
}

func newWorker(cfg config.QueueConfig, handler ports.JobHandler, log *slog.Logger) worker {
	switch cfg.Driver {
	case "kafka":
		return queue.NewKafka(queue.KafkaConfig{Brokers: cfg.Brokers, Topic: cfg.Topic, Group: cfg.Group}, handler, log)
	case "none":
		return nil
	default:
		return queue.NewLocal(cfg.Buffer, handler, log)
	}
}

// Run serves HTTP, consumes background jobs and fires the daily run until ctx ends.
func (a *Application) Run(ctx context.Context) error {
	if pruned, err := a.dedup.Prune(ctx, time.Now()); err != nil {
		a.logger.Warn("prune dedup store", "err", err)
	} else if pruned > 0 {
		a.logger.Info("expired dedup entries pruned", "count", pruned)
	}

	if a.worker != nil {
		// In-flight runs finish during shutdown; Stop closes the consumer.
		a.worker.Start(context.WithoutCancel(ctx))
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("next scheduled run", "at", a.scheduler.Next().Format(time.RFC3339))

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	return errors.Join(serveErr, a.shutdown())
}

// Reload re-reads the config file and swaps the settings snapshot, re-arming the
// schedule when its time or timezone changed. Other sections need a restart.
func (a *Application) Reload() error {
	cfg, err := config.LoadFile(config.Path())
	if err != nil {
		return err
	}
	if !a.settings.Update(cfg.Settings) {
		a.logger.Info("settings reloaded")
		return nil
	}
	s := a.settings.Settings()
	if err := a.scheduler.Reschedule(s.ScheduleTime, s.Location); err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}
	a.logger.Info("settings reloaded, schedule re-armed", "next", a.scheduler.Next().Format(time.RFC3339))
	return nil
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if a.worker != nil {
		if err := a.worker.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop queue: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	a.logger.Info("application stopped")
	return errors.Join(errs...)
}
