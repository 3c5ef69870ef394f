// Package model wraps the language-model collaborator behind a small
// interface the pipeline can treat as a black box. Prompts go in as
// role-tagged messages, text comes out; everything structured is plain
// JSON embedded in that text.
package model

import (
	"context"
	"fmt"
	"strings"
)

// Message is a single role-tagged prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries the messages plus per-call generation settings.
type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
}

// Response is the model's reply text.
type Response struct {
	Text string `json:"text"`
}

// Client invokes the language model. Calls block until the model
// answers or ctx is cancelled.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	APIKey  string
	BaseURL string
}

// NewClient builds a client for the configured mode. "openai" talks to
// the OpenAI chat-completions API; "mock" answers deterministically for
// local runs and tests.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "openai"
	}

	switch mode {
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for openai mode")
		}
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported model client mode %q", cfg.Mode)
	}
}
