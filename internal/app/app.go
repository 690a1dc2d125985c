package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/agents"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/handlers"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/pipeline"
	"github.com/ternarybob/scriba/internal/queue"
	"github.com/ternarybob/scriba/internal/services/cleanup"
	"github.com/ternarybob/scriba/internal/services/jobs"
	"github.com/ternarybob/scriba/internal/services/llm"
	"github.com/ternarybob/scriba/internal/services/pdf"
	storagebadger "github.com/ternarybob/scriba/internal/storage/badger"
	"github.com/ternarybob/scriba/internal/templates"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	Registry       *templates.Registry

	// Generation services
	LLMService   interfaces.LLMService
	AgentSet     *interfaces.AgentSet
	PDFService   interfaces.PDFService
	PDFExtractor interfaces.PDFExtractor

	// Pipeline and queue
	Executor       *pipeline.Executor
	QueueService   interfaces.QueueService
	WorkerPool     *queue.WorkerPool
	Reaper         *queue.Reaper
	JobService     *jobs.Service
	CleanupService *cleanup.Service

	// HTTP handlers
	APIHandler   *handlers.APIHandler
	JobHandler   *handlers.JobHandler
	DraftHandler *handlers.DraftHandler
	AdminHandler *handlers.AdminHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	return app, nil
}

func (a *App) initStorage() error {
	manager, err := storagebadger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	return nil
}

func (a *App) initServices() error {
	// Template rule sets, built-ins plus optional overrides
	a.Registry = templates.NewRegistry()
	if a.Config.Templates.Dir != "" {
		if err := a.Registry.LoadOverrides(a.Config.Templates.Dir, a.Logger); err != nil {
			a.Logger.Warn().Err(err).
				Str("dir", a.Config.Templates.Dir).
				Msg("Failed to load template overrides, using built-ins")
		}
	}

	// LLM provider and agents
	llmService, err := llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}
	a.LLMService = llmService
	a.AgentSet = agents.NewAgentSet(llmService, a.Logger)

	// PDF rendering and manual extraction
	a.PDFService = pdf.NewService(a.Logger)
	a.PDFExtractor = pdf.NewExtractor(a.Logger)

	// Pipeline executor
	orchestrator := pipeline.NewOrchestrator(a.AgentSet, a.Logger)
	a.Executor = pipeline.NewExecutor(orchestrator, a.StorageManager, a.PDFService, a.Registry, a.Config, a.Logger)

	// Queue substrate. The durable queue shares the Badger store with
	// job and artifact records.
	manager, ok := a.StorageManager.(*storagebadger.Manager)
	if !ok {
		return fmt.Errorf("storage manager does not expose a badger database")
	}
	durable, err := queue.NewDurableQueue(manager.DB(), &a.Config.Queue, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create durable queue: %w", err)
	}
	a.QueueService = queue.NewService(durable, a.Executor, a.StorageManager.JobStorage(), &a.Config.Queue, a.Logger)

	if a.Config.Queue.Mode == "durable" {
		pool, err := queue.NewWorkerPool(durable, a.Executor, &a.Config.Queue, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create worker pool: %w", err)
		}
		pool.Start()
		a.WorkerPool = pool
	}

	// Stale-job reaper
	reaper, err := queue.NewReaper(a.StorageManager.JobStorage(), &a.Config.Pipeline, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create reaper: %w", err)
	}
	if err := reaper.Start(); err != nil {
		return fmt.Errorf("failed to start reaper: %w", err)
	}
	a.Reaper = reaper

	// Job service (submission, status, drafts)
	a.JobService = jobs.NewService(a.StorageManager, a.QueueService, a.AgentSet,
		a.PDFService, a.PDFExtractor, a.Registry, a.Config, a.Logger)

	// Scheduled artifact cleanup
	a.CleanupService = cleanup.NewService(a.StorageManager, &a.Config.Cleanup, a.Logger)
	if err := a.CleanupService.Start(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to start cleanup scheduler")
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.JobHandler = handlers.NewJobHandler(a.JobService, a.Config, a.Logger)
	a.DraftHandler = handlers.NewDraftHandler(a.JobService, a.Config, a.Logger)
	a.AdminHandler = handlers.NewAdminHandler(a.CleanupService, a.Config, a.Logger)
}

// Close shuts down components in reverse dependency order
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application...")

	if a.CleanupService != nil {
		a.CleanupService.Stop()
	}
	if a.Reaper != nil {
		a.Reaper.Stop()
	}
	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
	}
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}
