package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/handlers"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/services/browser"
	"github.com/ternarybob/vigil/internal/services/classifier"
	"github.com/ternarybob/vigil/internal/services/detector"
	"github.com/ternarybob/vigil/internal/services/embeddings"
	"github.com/ternarybob/vigil/internal/services/extractor"
	"github.com/ternarybob/vigil/internal/services/llm"
	"github.com/ternarybob/vigil/internal/services/notify"
	"github.com/ternarybob/vigil/internal/services/orchestrator"
	"github.com/ternarybob/vigil/internal/services/scheduler"
	"github.com/ternarybob/vigil/internal/services/vectorizer"
	"github.com/ternarybob/vigil/internal/services/workflow"
	"github.com/ternarybob/vigil/internal/storage/badger"
)

// App holds all application services and handlers, wired in dependency
// order. Construction is all-or-nothing for core services; the LLM and
// embedding clients degrade to no-ops when their API keys are absent.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StorageManager *badger.Manager

	// Core services
	BrowserPool  *browser.Pool
	Fetcher      *browser.Fetcher
	Extractor    *extractor.Service
	Detector     *detector.Service
	Vectorizer   *vectorizer.Service
	Pipeline     *classifier.Pipeline
	Engine       *workflow.Engine
	Scheduler    *scheduler.Service
	Orchestrator *orchestrator.Service

	// Handlers
	SiteHandler   *handlers.SiteHandler
	AlertHandler  *handlers.AlertHandler
	StatusHandler *handlers.StatusHandler
	APIHandler    *handlers.APIHandler
}

// New creates the application with all services initialized
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: config,
		Logger: logger,
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().Msg("Application initialized")
	return app, nil
}

func (a *App) initDatabase(ctx context.Context) error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	// Site definitions from files supplement the API; a broken file or a
	// missing directory never blocks startup.
	if dir := a.Config.Sites.DefinitionsDir; dir != "" {
		if err := manager.LoadSiteDefinitionsFromFiles(ctx, dir); err != nil {
			a.Logger.Warn().Err(err).Str("dir", dir).Msg("Failed to load site definitions")
		}
	}

	return nil
}

func (a *App) initServices(ctx context.Context) error {
	cfg := a.Config

	// Browser pool and fetcher
	userAgent := ""
	if len(cfg.Browser.UserAgents) > 0 {
		userAgent = cfg.Browser.UserAgents[0]
	}
	a.BrowserPool = browser.NewPool(browser.PoolConfig{
		PoolSize:  cfg.Browser.PoolSize,
		Headless:  cfg.Browser.Headless,
		NoSandbox: cfg.Browser.NoSandbox,
		UserAgent: userAgent,
	}, a.Logger)

	a.Fetcher = browser.NewFetcher(browser.FetcherConfig{
		NavigationTimeout:  cfg.Browser.NavigationTimeout,
		JavaScriptWaitTime: cfg.Browser.JavaScriptWaitTime,
		UserAgents:         cfg.Browser.UserAgents,
		BlockedResources:   cfg.Browser.BlockedResources,
	}, a.BrowserPool, a.Logger)

	// Content analysis
	a.Extractor = extractor.NewService(extractor.Config{
		MaxContentBytes: cfg.Detector.MaxContentBytes,
	}, a.Logger)

	a.Detector = detector.NewService(detector.Thresholds{
		Similarity:     cfg.Detector.SimilarityThreshold,
		Structural:     cfg.Detector.StructuralThreshold,
		CriticalChange: cfg.Detector.CriticalChangeThreshold,
	}, a.Logger)

	// Embeddings; without a Gemini key semantic comparison is skipped
	var embedder interfaces.Embedder
	gemini, err := embeddings.NewGeminiService(ctx, &cfg.Gemini, cfg.Vectorizer.Dimension, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Embeddings disabled")
	} else {
		embedder = gemini
	}
	if embedder != nil {
		a.Vectorizer = vectorizer.NewService(vectorizer.Config{
			MaxContentLength: cfg.Vectorizer.MaxContentLength,
			ChunkThreshold:   cfg.Vectorizer.ChunkThreshold,
		}, embedder, a.Logger)
	}

	// Classification; without a Claude key the LLM classifier abstains
	// and the rules and semantic classifiers carry the ensemble.
	var llmClient interfaces.LLMClassifier
	if cfg.Claude.MaxTokens == 0 {
		cfg.Claude.MaxTokens = cfg.Classifier.LLMMaxTokens
	}
	claude, err := llm.NewClaudeService(&cfg.Claude, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("LLM classification disabled")
	} else {
		llmClient = claude
	}
	adapter := classifier.NewLLMAdapter(llmClient, cfg.Classifier.LLMTimeout, a.Logger)
	a.Pipeline = classifier.NewPipeline(adapter, a.StorageManager.WeightsStorage(),
		int64(cfg.Scheduler.MaxConcurrentJobs), a.Logger).
		WithBaseWeights(cfg.Classifier.BaseWeights).
		WithConfidenceThresholds(cfg.Classifier.ConfidenceThresholds)

	// Check workflow
	a.Engine = workflow.NewEngine(workflow.Config{
		TotalDeadline: cfg.Workflow.TotalDeadline,
		FetchTimeout:  cfg.Workflow.FetchTimeout,
		DrainDeadline: cfg.Workflow.DrainDeadline,
		DownThreshold: cfg.Breaker.FailureThreshold,
		KeepScans:     cfg.Sites.KeepScans,
	}, a.Fetcher, a.Extractor, a.Detector, a.Vectorizer, a.Pipeline,
		a.StorageManager, notify.NewLogNotifier(a.Logger), a.Logger)

	// Scheduler
	retry := &scheduler.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialDelay:    cfg.Retry.InitialDelay,
		MaxDelay:        cfg.Retry.MaxDelay,
		ExponentialBase: cfg.Retry.ExponentialBase,
		Jitter:          cfg.Retry.Jitter,
	}
	a.Scheduler = scheduler.NewService(scheduler.Config{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		MisfireGrace:      time.Duration(cfg.Scheduler.MisfireGraceSeconds) * time.Second,
		BreakerThreshold:  cfg.Breaker.FailureThreshold,
		BreakerRecovery:   cfg.Breaker.RecoveryTimeout,
		Retry:             retry,
	}, common.SystemClock{}, a.Engine, a.StorageManager.JobStorage(), a.Logger)

	// Orchestrator ties the lifecycle together
	a.Orchestrator = orchestrator.NewService(a.StorageManager, a.Scheduler,
		a.Engine, a.BrowserPool, a.Logger)

	return nil
}

func (a *App) initHandlers() {
	a.SiteHandler = handlers.NewSiteHandler(a.Orchestrator, a.StorageManager, a.Logger)
	a.AlertHandler = handlers.NewAlertHandler(a.StorageManager, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Orchestrator, a.StorageManager, a.Logger)
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
}

// Start begins monitoring: browser pool, scheduler, and all active sites
func (a *App) Start(ctx context.Context) error {
	return a.Orchestrator.Start(ctx)
}

// Close shuts everything down in reverse dependency order
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Stop()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close storage")
			return err
		}
	}
	a.Logger.Info().Msg("Application closed")
	return nil
}
