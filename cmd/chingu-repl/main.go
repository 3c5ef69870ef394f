package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	charm "github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/haneul-labs/chingu/internal/bootstrap"
	"github.com/haneul-labs/chingu/internal/config"
	"github.com/haneul-labs/chingu/internal/llmlog"
	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
	"github.com/haneul-labs/chingu/internal/persona"
	"github.com/haneul-labs/chingu/internal/pipeline"
)

// chingu-repl runs the same turn pipeline as the HTTP service as a
// terminal conversation with the default user.
func main() {
	_ = godotenv.Load()

	logger := charm.NewWithOptions(os.Stderr, charm.Options{Prefix: "chingu-repl"})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", "err", err)
	}

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

	chat := model.NewLoggingClient(base, "chat", logWriter, logger)
	analyst := model.NewLoggingClient(base, "analyst", logWriter, logger)

	seeded, err := bootstrap.Seed(ctx, store, analyst, bootstrap.Options{
		Model:         cfg.ChatModel,
		Temperature:   cfg.AnalystTemperature,
		AnalyzeWindow: cfg.BootstrapAnalyzeWindow,
		SummaryWindow: cfg.BootstrapSummaryWindow,
	}, cfg.DefaultUserID, cfg.LLMLogDir, logger)
	if err != nil {
		logger.Warn("session bootstrap failed", "err", err)
	} else if seeded > 0 {
		logger.Info("이전 대화 기록을 불러왔어요", "entries", seeded)
	}

	p := pipeline.New(store, chat, analyst, persona.Friend, pipeline.Options{
		ChatModel:             cfg.ChatModel,
		ChatTemperature:       cfg.ChatTemperature,
		AnalystTemperature:    cfg.AnalystTemperature,
		MinTurnsBeforeExtract: cfg.MinTurnsBeforeExtract,
		ExtractEveryTurns:     cfg.ExtractEveryTurns,
		RecentWindowMessages:  cfg.RecentWindowMessages,
	}, logger, nil)

	fmt.Printf("%s: %s\n", persona.Friend.Name, persona.Friend.Greeting)

	st := &pipeline.State{UserID: cfg.DefaultUserID}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit", "종료":
			fmt.Println("다음에 또 봐!")
			return
		}

		st.Messages = append(st.Messages, model.Message{Role: memory.RoleUser, Content: line})
		p.Run(ctx, st)
		fmt.Printf("%s: %s\n", persona.Friend.Name, st.Response)
	}
}
