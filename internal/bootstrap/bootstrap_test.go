package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haneul-labs/chingu/internal/llmlog"
	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
)

func TestReconstructNormalizesHeterogeneousShapes(t *testing.T) {
	entries := []llmlog.Entry{
		{
			Request: map[string]any{"messages": []any{
				map[string]any{"role": "user", "content": "안녕"},
				map[string]any{"role": "system", "content": "지침"},
			}},
			Response: map[string]any{"content": "안녕! 반가워"},
		},
		{
			Request:  "오늘 뭐해?",
			Response: "친구랑 얘기하는 중이야",
		},
		{
			Request: []any{
				map[string]any{"role": "user", "content": "등산 좋아해"},
			},
			Response: map[string]any{"choices": []any{
				map[string]any{"message": map[string]any{"content": "나도 산 좋아해!"}},
			}},
		},
	}

	lines := Reconstruct(entries)
	want := []string{
		"user: 안녕",
		"assistant: 안녕! 반가워",
		"request: 오늘 뭐해?",
		"assistant: 친구랑 얘기하는 중이야",
		"user: 등산 좋아해",
		"assistant: 나도 산 좋아해!",
	}
	if len(lines) != len(want) {
		t.Fatalf("Reconstruct() = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestReconstructSkipsUnrecognizedShapes(t *testing.T) {
	entries := []llmlog.Entry{
		{Request: 42, Response: []any{"not", "a", "map"}},
		{Request: map[string]any{"no_messages": true}, Response: map[string]any{"choices": []any{}}},
	}
	if lines := Reconstruct(entries); len(lines) != 0 {
		t.Fatalf("Reconstruct() = %v, want none", lines)
	}
}

func TestAnalyzeEmptyEntriesReturnsEmptyAggregate(t *testing.T) {
	analyst := model.NewMockClient()
	profile, convCtx := Analyze(context.Background(), analyst, DefaultOptions(), nil)
	if !profile.IsZero() || !convCtx.IsZero() {
		t.Fatalf("Analyze() = %+v / %+v, want empty aggregate", profile, convCtx)
	}
	if calls := analyst.Calls(); len(calls) != 0 {
		t.Fatalf("analyst calls = %d, want none for empty logs", len(calls))
	}
}

func TestAnalyzeCombinesExtractionAndSummary(t *testing.T) {
	analyst := model.NewMockClient()
	analyst.EnqueueText(`{
		"user_information": {"name": "민수", "interests": ["등산"]},
		"conversation_context": {"main_topics": ["등산"], "current_context": "산행 계획"}
	}`)
	analyst.EnqueueText("민수와 주말 산행을 계획하는 대화였다.")

	entries := []llmlog.Entry{
		{Request: "주말에 등산 갈래?", Response: "좋지, 어디로 갈까?"},
	}
	profile, convCtx := Analyze(context.Background(), analyst, DefaultOptions(), entries)

	if profile.Name != "민수" {
		t.Fatalf("profile = %+v, want extracted name", profile)
	}
	if !strings.Contains(convCtx.CurrentContext, "산행 계획") {
		t.Fatalf("CurrentContext = %q, want extraction summary kept", convCtx.CurrentContext)
	}
	if !strings.Contains(convCtx.CurrentContext, summaryHeading+"민수와 주말 산행을 계획하는 대화였다.") {
		t.Fatalf("CurrentContext = %q, want appended summary heading", convCtx.CurrentContext)
	}
}

func TestAnalyzeDegradesOnModelFailure(t *testing.T) {
	analyst := model.NewMockClient()
	analyst.EnqueueError(errors.New("model down"))
	analyst.EnqueueError(errors.New("model down"))

	entries := []llmlog.Entry{{Request: "안녕", Response: "안녕!"}}
	profile, convCtx := Analyze(context.Background(), analyst, DefaultOptions(), entries)
	if !profile.IsZero() || !convCtx.IsZero() {
		t.Fatalf("Analyze() after failures = %+v / %+v, want empty", profile, convCtx)
	}
}

func TestAnalyzeMalformedExtractionStillSummarizes(t *testing.T) {
	analyst := model.NewMockClient()
	analyst.EnqueueText("not json")
	analyst.EnqueueText("요약문")

	entries := []llmlog.Entry{{Request: "안녕", Response: "안녕!"}}
	profile, convCtx := Analyze(context.Background(), analyst, DefaultOptions(), entries)
	if !profile.IsZero() {
		t.Fatalf("profile = %+v, want empty on parse failure", profile)
	}
	if convCtx.CurrentContext != summaryHeading+"요약문" {
		t.Fatalf("CurrentContext = %q, want summary only", convCtx.CurrentContext)
	}
}

func TestSeedZeroLogsWritesNothing(t *testing.T) {
	store := memory.NewMemStore()
	analyst := model.NewMockClient()

	n, err := Seed(context.Background(), store, analyst, DefaultOptions(), "u1", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Seed() = %d entries, want 0", n)
	}

	profile, _ := store.Profile(context.Background(), "u1")
	convCtx, _ := store.Context(context.Background(), "u1")
	if !profile.IsZero() || !convCtx.IsZero() {
		t.Fatalf("store written despite zero logs: %+v / %+v", profile, convCtx)
	}
	if !convCtx.LastUpdateTime.IsZero() {
		t.Fatalf("LastUpdateTime stamped despite zero logs")
	}
}
