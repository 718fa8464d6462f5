package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/kakeibo/internal/config"
	"github.com/kirillkom/kakeibo/internal/core/ports"
	"github.com/kirillkom/kakeibo/internal/core/usecase"
	"github.com/kirillkom/kakeibo/internal/infrastructure/categorizer/keyword"
	"github.com/kirillkom/kakeibo/internal/infrastructure/dispatch/inproc"
	"github.com/kirillkom/kakeibo/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/kakeibo/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/kakeibo/internal/infrastructure/parser/regexparser"
	"github.com/kirillkom/kakeibo/internal/infrastructure/queue/nats"
	"github.com/kirillkom/kakeibo/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/kakeibo/internal/infrastructure/resilience"
	"github.com/kirillkom/kakeibo/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/kakeibo/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	// Exactly one of Pool and Queue is set, depending on Config.JobDispatch.
	Pool  *inproc.Pool
	Queue *nats.Queue

	Sweeper       *localfs.Sweeper
	WorkerMetrics *metrics.WorkerMetrics

	StatementUC *usecase.StatementUseCase
	StatusUC    ports.StatusReporter
	ProfileUC   ports.ProfileService
	LedgerUC    ports.LedgerReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	categorizer, err := newCategorizer(cfg.CategoryRulesPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init categorizer: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithLogger(logger)
	profiles := postgres.NewProfileRepository(db)
	ledger := postgres.NewLedgerRepositoryWithExecutor(db, executor)

	app := &App{Config: cfg, Logger: logger}

	var dispatcher ports.JobDispatcher
	switch cfg.JobDispatch {
	case config.DispatchNATS:
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		dispatcher = queue
	default:
		app.Pool = inproc.NewPool(cfg.WorkerConcurrency, cfg.WorkerQueueSize, logger)
		dispatcher = app.Pool
	}

	app.WorkerMetrics = metrics.NewWorkerMetrics("worker")
	pipeline := usecase.NewExtractionPipeline(storage, pdftext.NewExtractor(), regexparser.New(logger))

	app.StatementUC = usecase.NewStatementUseCase(
		profiles,
		ledger,
		storage,
		usecase.NewUploadValidator(cfg.UploadMaxBytes),
		pipeline,
		categorizer,
		dispatcher,
		usecase.StatementOptions{
			RunTimeout: cfg.JobTimeout,
			StaleAfter: cfg.JobStaleAfter,
			Logger:     logger,
			Metrics:    app.WorkerMetrics,
		},
	)
	app.StatusUC = usecase.NewStatusUseCase(profiles)
	app.ProfileUC = usecase.NewProfileUseCase(profiles)
	app.LedgerUC = usecase.NewLedgerUseCase(ledger, profiles, xlsx.NewLedgerExporter())

	app.Sweeper = localfs.NewSweeper(storage, usecase.StatementBlobPrefix, cfg.TempSweepSchedule, cfg.TempMaxAge, logger)

	app.closeFn = closer(app, db)
	return app, nil
}

// StartWorkers begins consuming in-process jobs. It is a no-op when jobs are
// dispatched over NATS.
func (a *App) StartWorkers(ctx context.Context) {
	if a.Pool != nil {
		a.Pool.Start(ctx, a.StatementUC)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closer(app *App, db *sql.DB) func() {
	return func() {
		if app.Pool != nil {
			app.Pool.Close()
		}
		if app.Queue != nil {
			app.Queue.Close()
		}
		_ = db.Close()
	}
}

func newCategorizer(rulesPath string) (*keyword.Categorizer, error) {
	if rulesPath == "" {
		return keyword.NewDefault(), nil
	}
	rules, err := keyword.LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	return keyword.New(rules)
}

// resilienceConfig keeps the retries of one ledger insert well inside
// JOB_TIMEOUT.
func resilienceConfig(cfg config.Config) resilience.Config {
	base := resilience.RetryPolicy{
		MaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		InitialBackoff: cfg.ResilienceRetryInitialBackoff,
		MaxBackoff:     cfg.ResilienceRetryMaxBackoff,
		Multiplier:     2,
	}
	breaker := resilience.BreakerPolicy{
		Enabled:          cfg.ResilienceBreakerEnabled,
		FailureRatio:     cfg.ResilienceBreakerFailureRatio,
		OpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
		HalfOpenMaxCalls: 1,
	}
	if cfg.ResilienceBreakerMinRequests > 0 {
		breaker.MinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	return resilience.StatementConfig(base, breaker, cfg.JobTimeout)
}
