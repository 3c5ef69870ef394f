package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewChatParamsSendsZeroTemperature(t *testing.T) {
	params := newChatParams(Request{
		Messages: []Message{
			{Role: "system", Content: "지침"},
			{Role: "user", Content: "안녕"},
		},
		Model:       "gpt-3.5-turbo",
		Temperature: 0,
	})

	body, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	if !strings.Contains(string(body), `"temperature":0`) {
		t.Fatalf("request body omits temperature 0: %s", body)
	}
}

func TestNewChatParamsSendsNonZeroTemperature(t *testing.T) {
	params := newChatParams(Request{
		Messages:    []Message{{Role: "user", Content: "안녕"}},
		Model:       "gpt-3.5-turbo",
		Temperature: 0.7,
	})

	body, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	if !strings.Contains(string(body), `"temperature":0.7`) {
		t.Fatalf("request body missing temperature 0.7: %s", body)
	}
}

func TestNewChatParamsMapsRoles(t *testing.T) {
	params := newChatParams(Request{
		Messages: []Message{
			{Role: "system", Content: "지침"},
			{Role: "user", Content: "안녕"},
			{Role: "assistant", Content: "안녕!"},
		},
		Model: "gpt-3.5-turbo",
	})
	if len(params.Messages) != 3 {
		t.Fatalf("messages length = %d, want 3", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Fatalf("message 0 not mapped to system")
	}
	if params.Messages[1].OfUser == nil {
		t.Fatalf("message 1 not mapped to user")
	}
	if params.Messages[2].OfAssistant == nil {
		t.Fatalf("message 2 not mapped to assistant")
	}
}
