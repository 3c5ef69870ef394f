// Package prompt builds the effective system instruction for a turn by
// splicing the base persona text with what the memory store knows about
// the user.
package prompt

import (
	"fmt"
	"strings"

	"github.com/haneul-labs/chingu/internal/memory"
)

// Enrich appends up to three blocks to the base persona instruction, in
// fixed order: profile facts, the current context summary, and the
// topics/pending-questions lines. Blocks whose source fields are empty
// are omitted entirely. Pure function over the given snapshot.
func Enrich(base string, p memory.Profile, c memory.Context) string {
	var b strings.Builder
	b.WriteString(base)

	if facts := formatProfile(p); len(facts) > 0 {
		b.WriteString("\n\n사용자 정보:\n")
		b.WriteString(strings.Join(facts, "\n"))
	}

	if c.CurrentContext != "" {
		b.WriteString("\n\n이전 대화 맥락:\n")
		b.WriteString(c.CurrentContext)
	}
	if len(c.MainTopics) > 0 {
		b.WriteString("\n\n주요 주제: ")
		b.WriteString(strings.Join(c.MainTopics, ", "))
	}
	if len(c.PendingQuestions) > 0 {
		b.WriteString("\n\n아직 답변하지 않은 질문들:\n- ")
		b.WriteString(strings.Join(c.PendingQuestions, ", "))
	}

	return b.String()
}

func formatProfile(p memory.Profile) []string {
	var facts []string
	if p.Name != "" {
		facts = append(facts, "이름: "+p.Name)
	}
	if p.Age != 0 {
		facts = append(facts, fmt.Sprintf("나이: %d", p.Age))
	}
	if p.Occupation != "" {
		facts = append(facts, "직업: "+p.Occupation)
	}
	if p.Location != "" {
		facts = append(facts, "거주지: "+p.Location)
	}
	if len(p.Interests) > 0 {
		facts = append(facts, "관심사: "+strings.Join(p.Interests, ", "))
	}
	if len(p.Goals) > 0 {
		facts = append(facts, "목표: "+strings.Join(p.Goals, ", "))
	}
	return facts
}
