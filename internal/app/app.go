package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/common"
	"github.com/ternarybob/meridian/internal/handlers"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/pipeline"
	"github.com/ternarybob/meridian/internal/services/llm"
	"github.com/ternarybob/meridian/internal/services/scheduler"
	"github.com/ternarybob/meridian/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	DB            *badger.BadgerDB
	KVStore       interfaces.KeyValueStore
	ReportArchive interfaces.ReportArchive

	// Generation pipeline
	Generator    interfaces.TextGenerator
	Stages       *pipeline.Stages
	LeaseManager *pipeline.LeaseManager
	Orchestrator *pipeline.Orchestrator

	// Scheduler
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler   *handlers.APIHandler
	BriefHandler *handlers.BriefHandler
}

// New creates and wires all application components
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    config,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize badger storage: %w", err)
	}
	app.DB = db
	app.KVStore = badger.NewKVStorage(db, logger)
	app.ReportArchive = badger.NewReportStorage(db, logger)

	app.Generator = llm.NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)

	app.Stages = pipeline.NewStages(
		app.Generator,
		logger,
		config.Brief.GetCallTimeout(),
		config.Brief.GetSynthesisTimeout(),
		config.Brief.MaxTokens,
	)
	app.LeaseManager = pipeline.NewLeaseManager(
		app.KVStore,
		logger,
		config.Brief.GetLeaseTTL(),
		config.Brief.GetResultTTL(),
	)
	app.Orchestrator = pipeline.NewOrchestrator(app.Stages, app.LeaseManager, app.ReportArchive, app.Generator, logger)

	app.SchedulerService = scheduler.NewService(app.Orchestrator, logger)
	if config.Schedule.Enabled {
		if err := app.SchedulerService.Start(config.Schedule.Cron); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	app.APIHandler = handlers.NewAPIHandler()
	app.BriefHandler = handlers.NewBriefHandler(app.Orchestrator, app.ReportArchive, logger)

	logger.Info().
		Str("provider", string(config.LLM.DefaultProvider)).
		Bool("scheduler", config.Schedule.Enabled).
		Msg("Application initialized")

	return app, nil
}

// Close shuts down all application components
func (a *App) Close() {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close badger storage")
		}
	}
	a.cancelCtx()
}
