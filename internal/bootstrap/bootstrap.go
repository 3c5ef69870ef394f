// Package bootstrap seeds a user's profile and conversation context
// from historical model-communication logs before the first live turn.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	charm "github.com/charmbracelet/log"

	"github.com/haneul-labs/chingu/internal/llmlog"
	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
)

// summaryHeading prefixes the bootstrap summary inside CurrentContext.
const summaryHeading = "이전 대화 요약: "

// Options controls the aggregation windows and the analyst invocation.
type Options struct {
	Model         string
	Temperature   float64
	AnalyzeWindow int
	SummaryWindow int
}

// DefaultOptions returns the windows the aggregation was tuned with.
func DefaultOptions() Options {
	return Options{
		Model:         "gpt-3.5-turbo",
		Temperature:   0,
		AnalyzeWindow: 100,
		SummaryWindow: 50,
	}
}

const analyzeInstruction = `다음 대화 기록을 분석하여 중요한 정보를 추출하세요. JSON 형식으로 다음 정보를 반환하세요:

1. user_information: {
    "name": str | null,
    "age": int | null,
    "occupation": str | null,
    "location": str | null,
    "interests": string[],
    "preferences": {key: value},
    "goals": string[],
    "family": {key: value},
    "contact_info": str | null
}

2. conversation_context: {
    "main_topics": string[],
    "current_context": str,
    "pending_questions": string[],
    "references": {key: value}
}

대화에서 명확하게 언급된 정보만 포함하세요. 추측하지 마세요.`

const summarizeInstruction = `다음은 이전 대화 기록입니다. 이 대화의 주요 내용을 200자 이내로 간결하게 요약해주세요.
중요한 정보, 주제 및 맥락만 포함하세요.`

// Reconstruct flattens heterogeneous log entries into role-tagged
// conversation lines. Requests may hold message-list maps, plain
// strings or lists of messages; responses may hold content maps,
// OpenAI-style choice arrays or plain strings. Unrecognized shapes are
// skipped.
func Reconstruct(entries []llmlog.Entry) []string {
	var lines []string
	for _, e := range entries {
		lines = append(lines, requestLines(e.Request)...)
		if line, ok := responseLine(e.Response); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func requestLines(request any) []string {
	var lines []string
	switch req := request.(type) {
	case map[string]any:
		msgs, ok := req["messages"].([]any)
		if !ok {
			return nil
		}
		for _, item := range msgs {
			if line, ok := messageLine(item); ok {
				lines = append(lines, line)
			}
		}
	case string:
		if req != "" {
			lines = append(lines, "request: "+req)
		}
	case []any:
		for _, item := range req {
			if line, ok := messageLine(item); ok {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func messageLine(item any) (string, bool) {
	msg, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	role, _ := msg["role"].(string)
	content, _ := msg["content"].(string)
	if content == "" || (role != memory.RoleUser && role != memory.RoleAssistant) {
		return "", false
	}
	return role + ": " + content, true
}

func responseLine(response any) (string, bool) {
	switch res := response.(type) {
	case map[string]any:
		if content, ok := res["content"].(string); ok && content != "" {
			return "assistant: " + content, true
		}
		choices, ok := res["choices"].([]any)
		if !ok || len(choices) == 0 {
			return "", false
		}
		choice, ok := choices[0].(map[string]any)
		if !ok {
			return "", false
		}
		msg, ok := choice["message"].(map[string]any)
		if !ok {
			return "", false
		}
		if content, ok := msg["content"].(string); ok && content != "" {
			return "assistant: " + content, true
		}
	case string:
		if res != "" {
			return "assistant: " + res, true
		}
	}
	return "", false
}

// aggregate is the JSON shape the combined extraction prompt asks for.
type aggregate struct {
	UserInformation     memory.Profile `json:"user_information"`
	ConversationContext memory.Context `json:"conversation_context"`
}

// Analyze runs the combined extraction over the most recent lines, then
// a separate summarization whose output is appended to the context
// summary. Both calls degrade to empty results on failure.
func Analyze(ctx context.Context, analyst model.Client, opts Options, entries []llmlog.Entry) (memory.Profile, memory.Context) {
	lines := Reconstruct(entries)
	if len(lines) == 0 {
		return memory.Profile{}, memory.Context{}
	}

	var agg aggregate
	window := tail(lines, opts.AnalyzeWindow)
	res, err := analyst.Complete(ctx, model.Request{
		Messages: []model.Message{
			{Role: memory.RoleSystem, Content: analyzeInstruction},
			{Role: memory.RoleUser, Content: "다음 대화 기록을 분석하세요:\n\n" + strings.Join(window, "\n")},
		},
		Model:       opts.Model,
		Temperature: opts.Temperature,
	})
	if err == nil {
		if parseErr := decodeAggregate(res.Text, &agg); parseErr != nil {
			agg = aggregate{}
		}
	}

	summary := summarize(ctx, analyst, opts, lines)
	if summary != "" {
		if agg.ConversationContext.CurrentContext != "" {
			agg.ConversationContext.CurrentContext += "\n\n" + summaryHeading + summary
		} else {
			agg.ConversationContext.CurrentContext = summaryHeading + summary
		}
	}

	return agg.UserInformation, agg.ConversationContext
}

func summarize(ctx context.Context, analyst model.Client, opts Options, lines []string) string {
	window := tail(lines, opts.SummaryWindow)
	res, err := analyst.Complete(ctx, model.Request{
		Messages: []model.Message{
			{Role: memory.RoleSystem, Content: summarizeInstruction},
			{Role: memory.RoleUser, Content: "대화 기록:\n\n" + strings.Join(window, "\n")},
		},
		Model:       opts.Model,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Text)
}

// Seed loads historical logs, analyzes them and writes the aggregate
// through the store's regular merge operations, so bootstrap obeys the
// same semantics as live turns. Zero log entries mean zero writes.
func Seed(ctx context.Context, store memory.Store, analyst model.Client, opts Options, userID, dir string, logger *charm.Logger) (int, error) {
	entries, err := llmlog.Load(dir)
	if err != nil {
		return 0, fmt.Errorf("load logs: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	profile, convCtx := Analyze(ctx, analyst, opts, entries)

	if !profile.IsZero() {
		if err := store.UpdateProfile(ctx, userID, profile); err != nil {
			return len(entries), fmt.Errorf("seed profile: %w", err)
		}
		if logger != nil {
			logger.Info("bootstrap profile seeded", "user_id", userID)
		}
	}
	if !convCtx.IsZero() {
		if err := store.UpdateContext(ctx, userID, convCtx); err != nil {
			return len(entries), fmt.Errorf("seed context: %w", err)
		}
		if logger != nil {
			logger.Info("bootstrap context seeded", "user_id", userID, "topics", len(convCtx.MainTopics))
		}
	}

	return len(entries), nil
}

func decodeAggregate(text string, out *aggregate) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return json.Unmarshal([]byte(trimmed), out)
}

func tail(lines []string, n int) []string {
	if n <= 0 || n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}
