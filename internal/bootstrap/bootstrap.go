package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/stablebooks/internal/config"
	"github.com/kirillkom/stablebooks/internal/core/ports"
	"github.com/kirillkom/stablebooks/internal/core/usecase"
	"github.com/kirillkom/stablebooks/internal/infrastructure/categories"
	"github.com/kirillkom/stablebooks/internal/infrastructure/extractor"
	"github.com/kirillkom/stablebooks/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/stablebooks/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/stablebooks/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/stablebooks/internal/infrastructure/queue/nats"
	"github.com/kirillkom/stablebooks/internal/infrastructure/repository/memory"
	"github.com/kirillkom/stablebooks/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/stablebooks/internal/infrastructure/resilience"
	"github.com/kirillkom/stablebooks/internal/infrastructure/roster/xlsx"
	"github.com/kirillkom/stablebooks/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Categories ports.CategoryRegistry

	IngestUC  ports.DocumentIngestor
	Documents ports.DocumentReader
	ProcessUC ports.DocumentProcessor

	Invoices     ports.InvoiceReader
	Intake       ports.InvoiceIntake
	Matcher      ports.EntityMatcher
	Reclassifier ports.Reclassifier
	Approvals    ports.ApprovalEngine
	Roster       ports.RosterService

	closeFns []func()
}

// Options carries process-specific wiring.
type Options struct {
	Observer        ports.ReconciliationObserver
	ResilienceHooks resilience.Hooks
	// QueueLag receives the delivery lag of consumed ingestion events.
	QueueLag func(time.Duration)
	// WithoutQueue skips NATS; document upload and processing stay unwired.
	WithoutQueue bool
}

type stores struct {
	invoices  ports.InvoiceRepository
	horses    ports.HorseRepository
	documents ports.DocumentRepository
	tx        ports.Transactor
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	registry, err := categories.Load(cfg.CategoriesPath)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	app.Categories = registry

	st, err := app.openStores(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	locks := usecase.NewInvoiceLocks()
	reclassifier := usecase.NewReclassifyUseCase(st.invoices, registry, locks, cfg.TotalTolerance)
	intake := usecase.NewIntakeUseCase(st.invoices, st.horses, registry, reclassifier)

	app.Invoices = usecase.NewInvoiceQueryUseCase(st.invoices)
	app.Intake = intake
	app.Reclassifier = reclassifier
	app.Matcher = usecase.NewEntityMatcherUseCase(st.invoices, st.horses, st.tx, locks, usecase.MatcherOptions{
		ShareTolerance:  cfg.ShareTolerance,
		SuggestionLimit: cfg.MatchSuggestionLimit,
		Observer:        opts.Observer,
	})
	app.Approvals = usecase.NewApprovalUseCase(st.invoices, st.tx, locks, cfg.TotalTolerance, opts.Observer)
	app.Roster = usecase.NewRosterUseCase(st.horses, xlsx.NewParser())

	if opts.WithoutQueue {
		return app, nil
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutorWithHooks(resilienceConfig(cfg), opts.ResilienceHooks)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		HandlerTimeout:     time.Duration(cfg.ProcessTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
		OnDelivery:         opts.QueueLag,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closeFns = append(app.closeFns, queue.Close)

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
		Timeout:  time.Duration(cfg.OllamaTimeoutSeconds) * time.Second,
		Executor: executor,
	})
	textExtractor := extractor.NewRouter(map[string]ports.TextExtractor{
		"application/pdf": pdftext.NewExtractor(storage),
		"text/plain":      plaintext.NewExtractor(storage),
	})

	ingestUC := usecase.NewIngestDocumentUseCase(st.documents, storage, queue)
	app.IngestUC = ingestUC
	app.Documents = ingestUC
	app.ProcessUC = usecase.NewProcessDocumentUseCase(
		st.documents,
		textExtractor,
		ollama.NewInvoiceExtractor(ollamaClient),
		registry,
		intake,
	)
	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		store := memory.NewStore()
		return stores{invoices: store, horses: store, documents: store, tx: store}, nil
	case config.StoreBackendPostgres, "":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return stores{}, fmt.Errorf("open postgres: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return stores{}, fmt.Errorf("ensure schema: %w", err)
		}
		return postgresStores(db), nil
	default:
		return stores{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		invoices:  postgres.NewInvoiceRepository(db),
		horses:    postgres.NewHorseRepository(db),
		documents: postgres.NewDocumentRepository(db),
		tx:        postgres.NewTransactor(db),
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.Retry.MaxAttempts = cfg.RetryMaxAttempts
	out.Retry.InitialBackoff = time.Duration(cfg.RetryInitialMS) * time.Millisecond
	out.Retry.MaxBackoff = time.Duration(cfg.RetryMaxMS) * time.Millisecond
	out.Breaker.Enabled = cfg.BreakerEnabled
	out.Breaker.OpenTimeout = time.Duration(cfg.BreakerOpenSeconds) * time.Second
	return out
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
