package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient answers deterministically when no real model is configured.
// Tests can script replies and failures per call.
type MockClient struct {
	mu      sync.Mutex
	replies []func(Request) (Response, error)
	calls   []Request
}

func NewMockClient() *MockClient { return &MockClient{} }

// Enqueue scripts the next reply. Scripted replies are consumed in
// order; once exhausted the client falls back to echoing.
func (c *MockClient) Enqueue(fn func(Request) (Response, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, fn)
}

// EnqueueText scripts a fixed text reply.
func (c *MockClient) EnqueueText(text string) {
	c.Enqueue(func(Request) (Response, error) { return Response{Text: text}, nil })
}

// EnqueueError scripts a failing call.
func (c *MockClient) EnqueueError(err error) {
	c.Enqueue(func(Request) (Response, error) { return Response{}, err })
}

// Calls returns the requests seen so far.
func (c *MockClient) Calls() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *MockClient) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	c.mu.Lock()
	c.calls = append(c.calls, req)
	var fn func(Request) (Response, error)
	if len(c.replies) > 0 {
		fn = c.replies[0]
		c.replies = c.replies[1:]
	}
	c.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return Response{Text: echoReply(req)}, nil
}

func echoReply(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			text := strings.TrimSpace(req.Messages[i].Content)
			if text == "" {
				break
			}
			return fmt.Sprintf("들었어: %s", text)
		}
	}
	return "듣고 있어."
}
