// Package pipeline runs the four processing stages of one conversational
// turn: transcript ingestion, context tracking, profile extraction and
// response generation. Every stage degrades to "no update" on failure;
// the sequence always reaches response generation.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	charm "github.com/charmbracelet/log"

	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
	"github.com/haneul-labs/chingu/internal/observability"
	"github.com/haneul-labs/chingu/internal/persona"
	"github.com/haneul-labs/chingu/internal/policy"
	"github.com/haneul-labs/chingu/internal/prompt"
)

// FallbackReply is the user-visible reply when response generation fails.
const FallbackReply = "죄송합니다. 응답을 생성하는 데 문제가 발생했습니다."

// stageTopicCap bounds the topic list the context stage pre-merges
// before handing it to the store, which applies its own wider cap.
const stageTopicCap = 5

// Options carries the tunable pipeline settings.
type Options struct {
	ChatModel             string
	ChatTemperature       float64
	AnalystTemperature    float64
	MinTurnsBeforeExtract int
	ExtractEveryTurns     int
	RecentWindowMessages  int
}

// DefaultOptions mirrors the cadence the service was tuned with.
func DefaultOptions() Options {
	return Options{
		ChatModel:             "gpt-3.5-turbo",
		ChatTemperature:       0.7,
		AnalystTemperature:    0,
		MinTurnsBeforeExtract: 3,
		ExtractEveryTurns:     3,
		RecentWindowMessages:  10,
	}
}

// Pipeline wires the memory store, the model clients and the persona
// into the per-turn stage sequence. The chat client answers the user;
// the analyst client runs the structured extraction calls at its own
// temperature.
type Pipeline struct {
	store   memory.Store
	chat    model.Client
	analyst model.Client
	persona persona.Persona
	opts    Options
	logger  *charm.Logger
	metrics *observability.Metrics
}

func New(store memory.Store, chat, analyst model.Client, p persona.Persona, opts Options, logger *charm.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.ExtractEveryTurns <= 0 {
		opts.ExtractEveryTurns = 3
	}
	if opts.RecentWindowMessages <= 0 {
		opts.RecentWindowMessages = 10
	}
	if logger == nil {
		logger = charm.New(io.Discard)
	}
	return &Pipeline{
		store:   store,
		chat:    chat,
		analyst: analyst,
		persona: p,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes all four stages in order on st and returns the per-stage
// results. No stage failure aborts the sequence; the worst outcome is a
// fallback reply with stale memory.
func (p *Pipeline) Run(ctx context.Context, st *State) []StageResult {
	turnStart := time.Now()

	stages := []struct {
		name string
		fn   func(context.Context, *State) error
	}{
		{observability.StageIngest, p.ingest},
		{observability.StageTrackContext, p.trackContext},
		{observability.StageExtractProfile, p.extractProfile},
		{observability.StageRespond, p.respond},
	}

	results := make([]StageResult, 0, len(stages))
	for _, stage := range stages {
		start := time.Now()
		err := stage.fn(ctx, st)
		p.observeStage(stage.name, time.Since(start))
		if err != nil {
			p.logger.Warn("stage recovered", "stage", stage.name, "user_id", st.UserID, "err", err)
			if p.metrics != nil {
				p.metrics.StageErrors.WithLabelValues(stage.name).Inc()
			}
		}
		results = append(results, StageResult{Stage: stage.name, Err: err})
	}

	p.observeStage(observability.StageTurnTotal, time.Since(turnStart))
	if p.metrics != nil {
		p.metrics.TurnsTotal.Inc()
	}
	return results
}

func (p *Pipeline) observeStage(stage string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveTurnStage(stage, d)
	}
}

// ingest persists the raw history and assembles the enriched prompt. A
// store failure is reported but the prompt is still built, from whatever
// memory could be read.
func (p *Pipeline) ingest(ctx context.Context, st *State) error {
	var firstErr error

	if err := p.store.SaveTranscript(ctx, st.UserID, toTurns(st.Messages)); err != nil {
		firstErr = fmt.Errorf("save transcript: %w", err)
	}

	profile, err := p.store.Profile(ctx, st.UserID)
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("load profile: %w", err)
	}
	convCtx, err := p.store.Context(ctx, st.UserID)
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("load context: %w", err)
	}

	enriched := prompt.Enrich(p.persona.SystemPrompt, profile, convCtx)

	msgs := make([]model.Message, 0, len(st.Messages)+1)
	msgs = append(msgs, model.Message{Role: memory.RoleSystem, Content: enriched})
	for _, m := range st.Messages {
		if m.Role == memory.RoleUser || m.Role == memory.RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	st.Prompt = msgs

	return firstErr
}

// contextAnalysis is the JSON shape the context analyst is asked for.
type contextAnalysis struct {
	MainTopics       []string          `json:"main_topics"`
	CurrentContext   string            `json:"current_context"`
	PendingQuestions []string          `json:"pending_questions"`
	References       map[string]string `json:"references"`
}

// trackContext asks the analyst what the latest user message means for
// the discussion state and merges the answer into the store. Lists are
// pre-merged with the stored lists before the store merges them again;
// the double application is deliberate and kept as-is.
func (p *Pipeline) trackContext(ctx context.Context, st *State) error {
	last, ok := latestUserUtterance(st.Messages)
	if !ok {
		return nil
	}

	current, err := p.store.Context(ctx, st.UserID)
	if err != nil {
		return fmt.Errorf("load context: %w", err)
	}

	res, err := p.completeAnalyst(ctx, contextInstruction(current), "사용자의 마지막 메시지: "+last)
	if err != nil {
		return fmt.Errorf("context analysis: %w", err)
	}

	var analysis contextAnalysis
	if err := decodeJSON(res.Text, &analysis); err != nil {
		return fmt.Errorf("context analysis: %w", err)
	}

	partial := memory.Context{}
	if len(analysis.MainTopics) > 0 {
		merged := dedupe(append(append([]string{}, current.MainTopics...), analysis.MainTopics...))
		if len(merged) > stageTopicCap {
			merged = merged[len(merged)-stageTopicCap:]
		}
		partial.MainTopics = merged
	}
	if analysis.CurrentContext != "" {
		partial.CurrentContext = analysis.CurrentContext
	}
	if len(analysis.PendingQuestions) > 0 {
		partial.PendingQuestions = dedupe(append(append([]string{}, current.PendingQuestions...), analysis.PendingQuestions...))
	}
	if len(analysis.References) > 0 {
		refs := make(map[string]string, len(current.References)+len(analysis.References))
		for k, v := range current.References {
			refs[k] = v
		}
		for k, v := range analysis.References {
			refs[k] = v
		}
		partial.References = refs
	}

	if partial.IsZero() {
		return nil
	}
	if err := p.store.UpdateContext(ctx, st.UserID, partial); err != nil {
		return fmt.Errorf("update context: %w", err)
	}
	return nil
}

// extractProfile updates the durable profile when the cadence or the
// personal-information detector says it is worth a model call: at least
// MinTurnsBeforeExtract user turns, then every ExtractEveryTurns turns
// or whenever the latest utterance looks like a disclosure.
func (p *Pipeline) extractProfile(ctx context.Context, st *State) error {
	turns := userTurnCount(st.Messages)
	if turns < p.opts.MinTurnsBeforeExtract {
		return nil
	}
	if turns%p.opts.ExtractEveryTurns != 0 && !policy.ContainsPersonalInfo(toTurns(st.Messages)) {
		return nil
	}

	recent := st.Messages
	if len(recent) > p.opts.RecentWindowMessages {
		recent = recent[len(recent)-p.opts.RecentWindowMessages:]
	}

	current, err := p.store.Profile(ctx, st.UserID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	res, err := p.completeAnalyst(ctx, profileInstruction(current), "대화:\n"+renderTranscript(recent))
	if err != nil {
		return fmt.Errorf("profile extraction: %w", err)
	}

	var extracted memory.Profile
	if err := decodeJSON(res.Text, &extracted); err != nil {
		return fmt.Errorf("profile extraction: %w", err)
	}
	if extracted.IsZero() {
		return nil
	}

	if err := p.store.UpdateProfile(ctx, st.UserID, extracted); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// respond generates the assistant reply from the enriched prompt. On
// failure the fixed fallback is substituted and no assistant message is
// appended, so the caller still gets a complete turn.
func (p *Pipeline) respond(ctx context.Context, st *State) error {
	start := time.Now()
	res, err := p.chat.Complete(ctx, model.Request{
		Messages:    st.Prompt,
		Model:       p.opts.ChatModel,
		Temperature: p.opts.ChatTemperature,
	})
	if p.metrics != nil {
		p.metrics.ObserveModelLatency(time.Since(start))
	}
	if err != nil {
		st.Response = FallbackReply
		return fmt.Errorf("generate response: %w", err)
	}

	st.Messages = append(st.Messages, model.Message{Role: memory.RoleAssistant, Content: res.Text})
	st.Response = res.Text
	return nil
}

func (p *Pipeline) completeAnalyst(ctx context.Context, instruction, input string) (model.Response, error) {
	start := time.Now()
	res, err := p.analyst.Complete(ctx, model.Request{
		Messages: []model.Message{
			{Role: memory.RoleSystem, Content: instruction},
			{Role: memory.RoleUser, Content: input},
		},
		Model:       p.opts.ChatModel,
		Temperature: p.opts.AnalystTemperature,
	})
	if p.metrics != nil {
		p.metrics.ObserveModelLatency(time.Since(start))
	}
	return res, err
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
