package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haneul-labs/chingu/internal/config"
	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
	"github.com/haneul-labs/chingu/internal/persona"
	"github.com/haneul-labs/chingu/internal/pipeline"
	"github.com/haneul-labs/chingu/internal/session"
)

func newTestServer(store memory.Store, chat, analyst model.Client) *Server {
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	p := pipeline.New(store, chat, analyst, persona.Friend, pipeline.DefaultOptions(), nil, nil)
	return New(cfg, sessions, p, store, persona.Friend, nil)
}

func TestChatTurnEndpoint(t *testing.T) {
	store := memory.NewMemStore()
	chat := model.NewMockClient()
	analyst := model.NewMockClient()
	chat.EnqueueText("안녕! 반가워")
	analyst.EnqueueText("")

	srv := newTestServer(store, chat, analyst)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(turnRequest{
		UserID:   "u1",
		Messages: []model.Message{{Role: memory.RoleUser, Content: "안녕"}},
	})
	res, err := http.Post(ts.URL+"/v1/chat/turn", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/chat/turn error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload turnResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Response != "안녕! 반가워" {
		t.Fatalf("response = %q, want mocked reply", payload.Response)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("messages length = %d, want user + assistant", len(payload.Messages))
	}
	if len(payload.DegradedStages) != 0 {
		t.Fatalf("degraded_stages = %v, want none", payload.DegradedStages)
	}
}

func TestChatTurnValidation(t *testing.T) {
	store := memory.NewMemStore()
	srv := newTestServer(store, model.NewMockClient(), model.NewMockClient())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	cases := []struct {
		name string
		body string
	}{
		{"missing user id", `{"messages":[{"role":"user","content":"안녕"}]}`},
		{"empty messages", `{"user_id":"u1","messages":[]}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		res, err := http.Post(ts.URL+"/v1/chat/turn", "application/json", strings.NewReader(tc.body))
		if err != nil {
			t.Fatalf("%s: request error = %v", tc.name, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", tc.name, res.StatusCode, http.StatusBadRequest)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := memory.NewMemStore()
	srv := newTestServer(store, model.NewMockClient(), model.NewMockClient())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"user_id": "u1"})
	res, err := http.Post(ts.URL+"/v1/chat/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created map[string]any
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	if greeting, _ := created["greeting"].(string); greeting != persona.Friend.Greeting {
		t.Fatalf("greeting = %q, want persona greeting", greeting)
	}

	endRes, err := http.Post(ts.URL+"/v1/chat/session/"+sessionID+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end session error = %v", err)
	}
	endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}

	notFound, err := http.Post(ts.URL+"/v1/chat/session/nope/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end unknown session error = %v", err)
	}
	notFound.Body.Close()
	if notFound.StatusCode != http.StatusNotFound {
		t.Fatalf("end unknown status = %d, want %d", notFound.StatusCode, http.StatusNotFound)
	}
}

func TestMemoryEndpoints(t *testing.T) {
	store := memory.NewMemStore()
	ctx := context.Background()
	if err := store.UpdateProfile(ctx, "u1", memory.Profile{Name: "민수"}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if err := store.UpdateContext(ctx, "u1", memory.Context{
		MainTopics:       []string{"등산"},
		PendingQuestions: []string{"주말에 시간 돼?"},
	}); err != nil {
		t.Fatalf("UpdateContext() error = %v", err)
	}

	srv := newTestServer(store, model.NewMockClient(), model.NewMockClient())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/v1/memory/u1/profile")
	if err != nil {
		t.Fatalf("GET profile error = %v", err)
	}
	defer res.Body.Close()
	var profile memory.Profile
	if err := json.NewDecoder(res.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Name != "민수" {
		t.Fatalf("profile = %+v, want stored name", profile)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/memory/u1/context/questions",
		strings.NewReader(`{"question":"주말에 시간 돼?"}`))
	delRes, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE question error = %v", err)
	}
	defer delRes.Body.Close()
	if delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", delRes.StatusCode, http.StatusOK)
	}
	var convCtx memory.Context
	if err := json.NewDecoder(delRes.Body).Decode(&convCtx); err != nil {
		t.Fatalf("decode context: %v", err)
	}
	if len(convCtx.PendingQuestions) != 0 {
		t.Fatalf("PendingQuestions = %v, want resolved", convCtx.PendingQuestions)
	}
	if len(convCtx.MainTopics) != 1 {
		t.Fatalf("MainTopics = %v, want untouched", convCtx.MainTopics)
	}
}

func TestChatWS(t *testing.T) {
	store := memory.NewMemStore()
	chat := model.NewMockClient()
	analyst := model.NewMockClient()
	chat.EnqueueText("잘 지냈어! 너는?")
	analyst.EnqueueText("")

	srv := newTestServer(store, chat, analyst)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?user_id=u1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer conn.Close()

	var greeting wsServerMessage
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if greeting.Type != "greeting" || greeting.Content != persona.Friend.Greeting {
		t.Fatalf("greeting = %+v, want persona greeting", greeting)
	}

	if err := conn.WriteJSON(wsClientMessage{Type: "user_message", Content: "잘 지냈어?"}); err != nil {
		t.Fatalf("write user message: %v", err)
	}
	var reply wsServerMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != "assistant_message" || reply.Content != "잘 지냈어! 너는?" {
		t.Fatalf("reply = %+v, want assistant message", reply)
	}

	var turnEnd wsServerMessage
	if err := conn.ReadJSON(&turnEnd); err != nil {
		t.Fatalf("read turn end: %v", err)
	}
	if turnEnd.Type != "turn_end" || len(turnEnd.DegradedStages) != 0 {
		t.Fatalf("turn end = %+v, want clean turn_end event", turnEnd)
	}

	saved, err := store.Transcript(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("transcript = %+v, want the ingested user turn", saved)
	}
}

func TestChatWSTurnEndReportsDegradedStages(t *testing.T) {
	store := memory.NewMemStore()
	chat := model.NewMockClient()
	analyst := model.NewMockClient()
	chat.EnqueueError(errors.New("model unavailable"))
	analyst.EnqueueText("")

	srv := newTestServer(store, chat, analyst)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?user_id=u1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer conn.Close()

	var greeting wsServerMessage
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if err := conn.WriteJSON(wsClientMessage{Type: "user_message", Content: "안녕"}); err != nil {
		t.Fatalf("write user message: %v", err)
	}

	var reply wsServerMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Content != pipeline.FallbackReply {
		t.Fatalf("reply = %+v, want fallback reply", reply)
	}

	var turnEnd wsServerMessage
	if err := conn.ReadJSON(&turnEnd); err != nil {
		t.Fatalf("read turn end: %v", err)
	}
	if turnEnd.Type != "turn_end" {
		t.Fatalf("turn end = %+v, want turn_end event", turnEnd)
	}
	if len(turnEnd.DegradedStages) != 1 || turnEnd.DegradedStages[0] != "respond" {
		t.Fatalf("DegradedStages = %v, want the failed respond stage", turnEnd.DegradedStages)
	}
}

func TestChatWSRejectsMalformedMessage(t *testing.T) {
	store := memory.NewMemStore()
	srv := newTestServer(store, model.NewMockClient(), model.NewMockClient())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?user_id=u1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer conn.Close()

	var greeting wsServerMessage
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write malformed message: %v", err)
	}
	var reply wsServerMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read error reply: %v", err)
	}
	if reply.Type != "error" || reply.Code != "invalid_client_message" {
		t.Fatalf("reply = %+v, want invalid_client_message error", reply)
	}
}

func TestHealthAndPerfEndpoints(t *testing.T) {
	store := memory.NewMemStore()
	srv := newTestServer(store, model.NewMockClient(), model.NewMockClient())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	perfRes, err := http.Get(ts.URL + "/v1/perf/stages")
	if err != nil {
		t.Fatalf("GET /v1/perf/stages error = %v", err)
	}
	defer perfRes.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(perfRes.Body).Decode(&payload); err != nil {
		t.Fatalf("decode perf response: %v", err)
	}
	if _, ok := payload["stages"]; !ok {
		t.Fatalf("missing stages in perf response: %+v", payload)
	}
}
