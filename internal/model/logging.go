package model

import (
	"context"

	charm "github.com/charmbracelet/log"

	"github.com/haneul-labs/chingu/internal/llmlog"
)

// LoggingClient decorates a Client so every exchange lands in the
// JSON-lines communication log. Log failures never fail the call.
type LoggingClient struct {
	inner  Client
	source string
	writer *llmlog.Writer
	logger *charm.Logger
}

func NewLoggingClient(inner Client, source string, writer *llmlog.Writer, logger *charm.Logger) *LoggingClient {
	return &LoggingClient{inner: inner, source: source, writer: writer, logger: logger}
}

func (c *LoggingClient) Complete(ctx context.Context, req Request) (Response, error) {
	res, err := c.inner.Complete(ctx, req)

	if c.writer != nil {
		request := map[string]any{
			"messages":    req.Messages,
			"model":       req.Model,
			"temperature": req.Temperature,
		}
		var response any
		if err != nil {
			response = map[string]any{"error": err.Error()}
		} else {
			response = map[string]any{"role": "assistant", "content": res.Text}
		}
		if logErr := c.writer.Append(c.source, request, response); logErr != nil && c.logger != nil {
			c.logger.Warn("llm log append failed", "source", c.source, "err", logErr)
		}
	}

	return res, err
}
