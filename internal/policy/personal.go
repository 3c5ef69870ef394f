package policy

import (
	"regexp"

	"github.com/haneul-labs/chingu/internal/memory"
)

// Phrases that suggest the user is disclosing durable personal facts.
// Go's \b is ASCII-only and never matches next to Hangul, so standalone
// words carry explicit whitespace/punctuation anchors instead.
var personalInfoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(내|저|나)\s*이름`),
	regexp.MustCompile(`(내|저|나)\s*나이`),
	regexp.MustCompile(`(내|저|나)\s*직업`),
	regexp.MustCompile(`(내|저|나)\s*주소`),
	regexp.MustCompile(`(내|저|나)\s*취미`),
	regexp.MustCompile(`(내|저|나)\s*가족`),
	regexp.MustCompile(`(내|저|나)\s*연락처`),
	regexp.MustCompile(`라고\s*(불러|해)(?:$|[\s.,!?~])`),
	regexp.MustCompile(`살고\s*있어(?:$|[\s.,!?~])`),
	regexp.MustCompile(`(?:^|\s)살아(?:$|[\s.,!?~])`),
	regexp.MustCompile(`(?:^|\s)좋아해(?:$|[\s.,!?~])`),
	regexp.MustCompile(`관심\s*있어(?:$|[\s.,!?~])`),
	regexp.MustCompile(`(?:^|\s)좋아하는(?:$|\s)`),
	regexp.MustCompile(`(?:^|\s)소개(?:$|[\s.,!?~])`),
	regexp.MustCompile(`(나|저)에\s*대해`),
}

// ContainsPersonalInfo reports whether the latest user turn looks like a
// personal-fact disclosure. It is only a gate for running profile
// extraction off-cadence; it never extracts anything itself. Returns
// false when the history holds no user turn.
func ContainsPersonalInfo(turns []memory.Turn) bool {
	var last string
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == memory.RoleUser {
			last = turns[i].Content
			break
		}
	}
	if last == "" {
		return false
	}

	for _, p := range personalInfoPatterns {
		if p.MatchString(last) {
			return true
		}
	}
	return false
}
