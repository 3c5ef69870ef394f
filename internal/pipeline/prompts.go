package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haneul-labs/chingu/internal/memory"
	"github.com/haneul-labs/chingu/internal/model"
)

func contextInstruction(current memory.Context) string {
	existing, _ := json.MarshalIndent(current, "", "  ")
	return fmt.Sprintf(`다음 대화에서 사용자의 마지막 메시지를 분석하여 대화 맥락 정보를 JSON 형식으로 반환하세요:

1. main_topics: 주요 주제들의 배열(최대 3개, 짧은 키워드로)
2. current_context: 현재 맥락에 대한 간단한 요약 (최대 100자)
3. pending_questions: 아직 대답하지 않은 사용자의 질문들 배열
4. references: 대화 중 언급된 참조 정보 객체 (키-값 쌍)

이전 맥락 정보:
%s

새로운 정보만 추가하고, 기존 맥락과 일관성 있게 업데이트하세요.`, existing)
}

func profileInstruction(current memory.Profile) string {
	known, _ := json.MarshalIndent(current, "", "  ")
	return fmt.Sprintf(`다음 대화에서 사용자에 대한 개인 정보를 추출하세요.
이미 알고 있는 정보: %s

새로운 정보만 추출하고, 확실한 정보만 포함하세요. 추측하지 마세요.
결과를 다음 JSON 형식으로 반환하세요:
{
  "name": null,
  "age": null,
  "occupation": null,
  "location": null,
  "interests": [],
  "preferences": {},
  "goals": [],
  "family": {},
  "contact_info": null
}`, known)
}

// renderTranscript labels each message for the extraction prompt.
func renderTranscript(msgs []model.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case memory.RoleUser:
			b.WriteString("사용자: ")
		case memory.RoleAssistant:
			b.WriteString("챗봇: ")
		default:
			continue
		}
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// decodeJSON parses a model reply into out. An empty reply is treated as
// an empty object, matching how the analysts are prompted.
func decodeJSON(text string, out any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("parse model JSON: %w", err)
	}
	return nil
}
