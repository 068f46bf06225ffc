package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/autonomos/orchestrator/api"
	"github.com/autonomos/orchestrator/classify"
	"github.com/autonomos/orchestrator/config"
	"github.com/autonomos/orchestrator/executor"
	"github.com/autonomos/orchestrator/monitor"
	"github.com/autonomos/orchestrator/notify"
	"github.com/autonomos/orchestrator/orchestrate"
	"github.com/autonomos/orchestrator/policy"
	"github.com/autonomos/orchestrator/store"
	"github.com/autonomos/orchestrator/vendorapi"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting orchestrator",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("database", cfg.DatabaseURL),
		zap.Duration("cycle_interval", cfg.CycleInterval))

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		logger.Fatal("failed to load rules", zap.Error(err))
	}

	snap, err := config.LoadSnapshot(cfg.SnapshotPath)
	if err != nil {
		logger.Fatal("failed to load snapshot", zap.Error(err))
	}

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	// Classifier boundary: remote model when configured, rules otherwise.
	var classifier classify.Classifier
	if cfg.ClassifierURL != "" {
		classifier = classify.NewLLMClassifier(cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.ClassifierModel, cfg.ClassifierTimeout)
		logger.Info("using remote classifier", zap.String("model", cfg.ClassifierModel))
	} else {
		classifier = classify.RuleClassifier{}
		logger.Info("using rule classifier")
	}

	vendors := vendorapi.NewStatic(rules)

	var notifier notify.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, logger)
	} else {
		notifier = &notify.Log{Logger: logger}
	}

	// Initialize policy engine
	ctx := context.Background()
	policyContent := policy.DefaultPolicy
	if rules.Autonomy.PolicyPath != "" {
		data, err := os.ReadFile(rules.Autonomy.PolicyPath)
		if err != nil {
			logger.Fatal("failed to read policy file", zap.Error(err))
		}
		policyContent = string(data)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		logger.Fatal("failed to initialize policy engine", zap.Error(err))
	}

	exec := executor.New(vendors, rules.Inventory, logger)

	orchestrator := orchestrate.New(orchestrate.Options{
		Sources:     monitor.Sources(rules),
		Classifier:  classifier,
		CanAct:      policyEngine.Predicate(logger),
		Executor:    exec,
		Vendors:     vendors,
		Store:       db,
		Notifier:    notifier,
		Logger:      logger,
		Interval:    cfg.CycleInterval,
		Backoff:     cfg.CycleBackoff,
		Concurrency: cfg.ClassifyConcurrency,
		SpendLimit:  rules.Autonomy.SpendLimit,
		Initial:     snap,
	})

	// Initialize handler
	h := api.NewHandler(db, orchestrator, logger)

	// Create Echo server
	server := echo.New()
	server.HideBanner = true

	// Middleware
	server.Use(middleware.Recover())

	h.RegisterRoutes(server)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Start the continuous decision loop
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		orchestrator.Run(loopCtx)
		close(loopDone)
	}()

	logger.Info("orchestrator started", zap.Int("port", cfg.HTTPPort))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down orchestrator")

	// A cycle in flight runs to completion before the loop exits.
	stopLoop()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server gracefully", zap.Error(err))
	}

	logger.Info("orchestrator stopped")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
