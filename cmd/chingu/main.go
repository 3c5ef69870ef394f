package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charm "github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/haneul-labs/chingu/internal/bootstrap"
	"github.com/haneul-labs/chingu/internal/config"
	"github.com/haneul-labs/chingu/internal/httpapi"
	"github.com/haneul-labs/chingu/internal/llmlog"
	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
	"github.com/haneul-labs/chingu/internal/observability"
	"github.com/haneul-labs/chingu/internal/persona"
	"github.com/haneul-labs/chingu/internal/pipeline"
	"github.com/haneul-labs/chingu/internal/session"
)

func main() {
	_ = godotenv.Load()

	logger := charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
		Prefix:          "chingu",
	})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", "err", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("memory store init failed", "err", err)
	}
	defer store.Close()

	base, err := model.NewClient(model.Config{
		Mode:    cfg.ModelClientMode,
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		logger.Fatal("model client init failed", "err", err)
	}

	logWriter, err := llmlog.NewWriter(cfg.LLMLogDir)
	if err != nil {
		logger.Fatal("llm log init failed", "err", err)
	}
	defer logWriter.Close()
	logger.Info("llm log opened", "path", logWriter.Path())

	chat := model.NewLoggingClient(base, "chat", logWriter, logger)
	analyst := model.NewLoggingClient(base, "analyst", logWriter, logger)

	// Seed the default user's memory from earlier runs before taking
	// live traffic. The current run's fresh log file is already open and
	// empty, so it never feeds its own bootstrap.
	seeded, err := bootstrap.Seed(ctx, store, analyst, bootstrap.Options{
		Model:         cfg.ChatModel,
		Temperature:   cfg.AnalystTemperature,
		AnalyzeWindow: cfg.BootstrapAnalyzeWindow,
		SummaryWindow: cfg.BootstrapSummaryWindow,
	}, cfg.DefaultUserID, cfg.LLMLogDir, logger)
	if err != nil {
		logger.Warn("session bootstrap failed", "err", err)
	} else if seeded > 0 {
		logger.Info("session bootstrap complete", "entries", seeded, "user_id", cfg.DefaultUserID)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	p := pipeline.New(store, chat, analyst, persona.Friend, pipeline.Options{
		ChatModel:             cfg.ChatModel,
		ChatTemperature:       cfg.ChatTemperature,
		AnalystTemperature:    cfg.AnalystTemperature,
		MinTurnsBeforeExtract: cfg.MinTurnsBeforeExtract,
		ExtractEveryTurns:     cfg.ExtractEveryTurns,
		RecentWindowMessages:  cfg.RecentWindowMessages,
	}, logger, metrics)

	api := httpapi.New(cfg, sessions, p, store, persona.Friend, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}
