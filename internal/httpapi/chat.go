package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
	"github.com/haneul-labs/chingu/internal/pipeline"
)

type turnRequest struct {
	UserID   string          `json:"user_id"`
	Messages []model.Message `json:"messages"`
}

type turnResponse struct {
	UserID         string          `json:"user_id"`
	Response       string          `json:"response"`
	Messages       []model.Message `json:"messages"`
	DegradedStages []string        `json:"degraded_stages,omitempty"`
}

// handleTurn runs one stateless turn: the client sends the full message
// history ending with the latest user utterance and receives it back
// with the assistant reply appended.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}
	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "missing_messages", "messages must not be empty")
		return
	}

	st := &pipeline.State{UserID: req.UserID, Messages: req.Messages}
	results := s.runner.Run(r.Context(), st)

	respondJSON(w, http.StatusOK, turnResponse{
		UserID:         st.UserID,
		Response:       st.Response,
		Messages:       st.Messages,
		DegradedStages: degradedStages(results),
	})
}

func degradedStages(results []pipeline.StageResult) []string {
	var stages []string
	for _, r := range results {
		if r.Err != nil {
			stages = append(stages, r.Stage)
		}
	}
	return stages
}

type wsClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type wsServerMessage struct {
	Type           string   `json:"type"`
	SessionID      string   `json:"session_id,omitempty"`
	Content        string   `json:"content,omitempty"`
	Code           string   `json:"code,omitempty"`
	DegradedStages []string `json:"degraded_stages,omitempty"`
}

// handleChatWS runs a stateful chat over one websocket connection. The
// message history lives server-side for the lifetime of the connection;
// each inbound user_message triggers a full pipeline turn.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess := s.sessions.Create(userID)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
		s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	}
	defer func() {
		_, _ = s.sessions.End(sess.ID)
		if s.metrics != nil {
			s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
			s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(wsServerMessage{
		Type:      "greeting",
		SessionID: sess.ID,
		Content:   s.persona.Greeting,
	}); err != nil {
		return
	}

	conn.SetReadLimit(1 << 20)
	st := &pipeline.State{UserID: userID}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "user_message" || strings.TrimSpace(msg.Content) == "" {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(wsServerMessage{
				Type:      "error",
				SessionID: sess.ID,
				Code:      "invalid_client_message",
			}); err != nil {
				return
			}
			continue
		}

		st.Messages = append(st.Messages, model.Message{Role: memory.RoleUser, Content: msg.Content})
		results := s.runner.Run(r.Context(), st)
		_ = s.sessions.RecordTurn(sess.ID)

		_ = conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		if err := conn.WriteJSON(wsServerMessage{
			Type:      "assistant_message",
			SessionID: sess.ID,
			Content:   st.Response,
		}); err != nil {
			return
		}
		if err := conn.WriteJSON(wsServerMessage{
			Type:           "turn_end",
			SessionID:      sess.ID,
			DegradedStages: degradedStages(results),
		}); err != nil {
			return
		}
	}
}
