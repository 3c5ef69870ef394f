package pipeline

import (
	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
)

// State is the mutable per-turn state every stage receives and returns.
// Messages is the raw turn history from the caller; Prompt is the
// enriched model input assembled by the ingest stage; Response is the
// reply text set by the respond stage.
type State struct {
	UserID   string          `json:"user_id"`
	Messages []model.Message `json:"messages"`
	Prompt   []model.Message `json:"-"`
	Response string          `json:"response,omitempty"`
}

// StageResult is the explicit outcome of one stage. A non-nil Err means
// the stage contributed nothing this turn; it never aborts the turn.
type StageResult struct {
	Stage string
	Err   error
}

// Failed reports whether any stage in results recovered from an error.
func Failed(results []StageResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// toTurns converts boundary messages into store turns. This is the one
// normalization point; stages never re-derive roles ad hoc.
func toTurns(msgs []model.Message) []memory.Turn {
	turns := make([]memory.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, memory.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// latestUserUtterance scans from the end for the newest user message.
func latestUserUtterance(msgs []model.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == memory.RoleUser {
			return msgs[i].Content, true
		}
	}
	return "", false
}

func userTurnCount(msgs []model.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == memory.RoleUser {
			n++
		}
	}
	return n
}
