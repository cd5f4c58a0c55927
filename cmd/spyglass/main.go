package main

import (
	"context"

	"spyglass/internal/analysis"
	"spyglass/internal/api"
	"spyglass/internal/catalog"
	spyglassconfig "spyglass/internal/config"
	"spyglass/internal/content"
	"spyglass/internal/reports"
	"spyglass/internal/scenario"
	"spyglass/internal/schema"
	"spyglass/pkg/config"
	"spyglass/pkg/database"
	"spyglass/pkg/llm"
	"spyglass/pkg/logging"
	"spyglass/pkg/monitoring"
	"spyglass/pkg/server"
	"spyglass/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("spyglass")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Spyglass (Social Content Analysis API)")

	cfg := spyglassconfig.LoadConfig()

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	if err := schema.Ensure(context.Background(), db); err != nil {
		logger.WithError(err).Fatal("Failed to ensure database schema")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("spyglass", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("spyglass", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
	}))

	// Register one LLM client per configured provider family
	transport := llm.NewTransport()
	for _, family := range cfg.LLMProviders {
		client, err := llm.NewClient(llm.LoadConfig(family))
		if err != nil {
			logger.WithError(err).WithField("provider", family).Warn("Skipping LLM provider")
			continue
		}
		transport.Register(family, client)
		logger.WithField("provider", family).Info("Registered LLM provider")
	}

	// Stores
	catalogStore := catalog.NewStore(db)
	scenarioStore := scenario.NewStore(db, logger)
	recordStore := analysis.NewStore(db, logger)
	contentStore := content.NewStore(db, logger)

	orchestrator := analysis.NewOrchestrator(catalogStore, transport, recordStore, analysis.Config{
		BucketConcurrency: cfg.BucketConcurrency,
		CallTimeout:       cfg.CallTimeout,
		MaxOutputTokens:   cfg.MaxOutputTokens,
		MaxTopics:         cfg.MaxTopics,
		SampleItems:       cfg.SampleItems,
		PromptMaxLength:   cfg.PromptMaxLength,
	}, logger)

	reportService := reports.NewService(recordStore)

	// Scheduled analysis agent
	agentCtx, stopAgent := context.WithCancel(context.Background())
	defer stopAgent()
	if cfg.AgentEnabled {
		agent := analysis.NewAgent(analysis.AgentConfig{
			Interval:     cfg.AgentInterval,
			Lookback:     cfg.AgentLookback,
			Scenarios:    scenarioStore,
			Supplier:     contentStore,
			Orchestrator: orchestrator,
			Logger:       logger,
		})
		go agent.Start(agentCtx)
	} else {
		logger.Info("Analysis agent disabled")
	}

	// HTTP server
	router := server.SetupServiceRouter(logger, "spyglass", healthChecker, metricsCollector)
	handler := api.NewHandler(orchestrator, scenarioStore, recordStore, reportService,
		contentStore, cfg.AdminAPIKey, logger)
	api.RegisterRoutes(router, handler)

	serverConfig := server.DefaultConfig("spyglass", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
