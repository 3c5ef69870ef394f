package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion chat service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool

	ModelClientMode    string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ChatModel          string
	ChatTemperature    float64
	AnalystTemperature float64

	LLMLogDir     string
	DatabaseURL   string
	DefaultUserID string

	// Memory-extraction cadence and window sizes. The defaults come
	// from the behavior the service was tuned with; they are
	// configurable but rarely worth changing.
	MinTurnsBeforeExtract  int
	ExtractEveryTurns      int
	RecentWindowMessages   int
	BootstrapAnalyzeWindow int
	BootstrapSummaryWindow int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "chingu"),
		AllowAnyOrigin:           false,
		ModelClientMode:          envOrDefault("MODEL_CLIENT_MODE", "openai"),
		OpenAIAPIKey:             strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:            strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		ChatModel:                envOrDefault("CHAT_MODEL", "gpt-3.5-turbo"),
		ChatTemperature:          0.7,
		AnalystTemperature:       0,
		LLMLogDir:                envOrDefault("LLM_LOG_DIR", "logs"),
		DatabaseURL:              strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DefaultUserID:            envOrDefault("DEFAULT_USER_ID", "default_user"),
		MinTurnsBeforeExtract:    3,
		ExtractEveryTurns:        3,
		RecentWindowMessages:     10,
		BootstrapAnalyzeWindow:   100,
		BootstrapSummaryWindow:   50,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatTemperature, err = floatFromEnv("CHAT_TEMPERATURE", cfg.ChatTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.AnalystTemperature, err = floatFromEnv("ANALYST_TEMPERATURE", cfg.AnalystTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.MinTurnsBeforeExtract, err = intFromEnv("MIN_TURNS_BEFORE_EXTRACT", cfg.MinTurnsBeforeExtract)
	if err != nil {
		return Config{}, err
	}
	cfg.ExtractEveryTurns, err = intFromEnv("EXTRACT_EVERY_TURNS", cfg.ExtractEveryTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.RecentWindowMessages, err = intFromEnv("RECENT_WINDOW_MESSAGES", cfg.RecentWindowMessages)
	if err != nil {
		return Config{}, err
	}
	cfg.BootstrapAnalyzeWindow, err = intFromEnv("BOOTSTRAP_ANALYZE_WINDOW", cfg.BootstrapAnalyzeWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.BootstrapSummaryWindow, err = intFromEnv("BOOTSTRAP_SUMMARY_WINDOW", cfg.BootstrapSummaryWindow)
	if err != nil {
		return Config{}, err
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.ModelClientMode))
	if mode != "openai" && mode != "mock" {
		return Config{}, fmt.Errorf("MODEL_CLIENT_MODE must be openai or mock, got %q", cfg.ModelClientMode)
	}
	if mode == "openai" && cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is not set; set it in the environment or a .env file, or use MODEL_CLIENT_MODE=mock")
	}
	if cfg.ExtractEveryTurns <= 0 {
		return Config{}, fmt.Errorf("EXTRACT_EVERY_TURNS must be positive")
	}
	if cfg.MinTurnsBeforeExtract < 0 {
		return Config{}, fmt.Errorf("MIN_TURNS_BEFORE_EXTRACT must be >= 0")
	}
	if cfg.RecentWindowMessages <= 0 {
		return Config{}, fmt.Errorf("RECENT_WINDOW_MESSAGES must be positive")
	}
	if cfg.BootstrapAnalyzeWindow <= 0 || cfg.BootstrapSummaryWindow <= 0 {
		return Config{}, fmt.Errorf("bootstrap window sizes must be positive")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 2m: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
