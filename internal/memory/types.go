package memory

import (
	"context"
	"time"
)

// Message roles used throughout the pipeline. System turns are built per
// request and never persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is a single persisted conversational turn.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile holds durable facts about a user, built incrementally across
// turns. Every field is optional; zero values mean "unknown".
type Profile struct {
	Name        string            `json:"name,omitempty"`
	Age         int               `json:"age,omitempty"`
	Occupation  string            `json:"occupation,omitempty"`
	Location    string            `json:"location,omitempty"`
	Interests   []string          `json:"interests,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Goals       []string          `json:"goals,omitempty"`
	Family      map[string]string `json:"family,omitempty"`
	ContactInfo string            `json:"contact_info,omitempty"`
}

// IsZero reports whether the profile carries no information at all.
func (p Profile) IsZero() bool {
	return p.Name == "" && p.Age == 0 && p.Occupation == "" && p.Location == "" &&
		len(p.Interests) == 0 && len(p.Preferences) == 0 && len(p.Goals) == 0 &&
		len(p.Family) == 0 && p.ContactInfo == ""
}

// Context holds short-to-medium-term discussion state, distinct from the
// durable profile.
type Context struct {
	MainTopics       []string          `json:"main_topics"`
	CurrentContext   string            `json:"current_context"`
	PendingQuestions []string          `json:"pending_questions"`
	References       map[string]string `json:"references"`
	LastUpdateTime   time.Time         `json:"last_update_time"`
}

// NewContext returns an initialized empty context record. Callers always
// receive non-nil maps and slices they can range over safely.
func NewContext() Context {
	return Context{
		MainTopics:       []string{},
		PendingQuestions: []string{},
		References:       map[string]string{},
	}
}

// IsZero reports whether the context carries no information. The update
// timestamp is ignored because it advances on every update call.
func (c Context) IsZero() bool {
	return len(c.MainTopics) == 0 && c.CurrentContext == "" &&
		len(c.PendingQuestions) == 0 && len(c.References) == 0
}

// Store persists and retrieves per-user conversational memory: the
// transcript, the durable profile and the discussion context. All
// operations default to empty state for unknown user ids.
type Store interface {
	// SaveTranscript replaces the stored transcript wholesale. System
	// turns are dropped and zero timestamps are stamped with now.
	SaveTranscript(ctx context.Context, userID string, turns []Turn) error
	Transcript(ctx context.Context, userID string) ([]Turn, error)

	// UpdateProfile merges the non-empty fields of partial into the
	// stored profile. Existing values are never cleared.
	UpdateProfile(ctx context.Context, userID string, partial Profile) error
	Profile(ctx context.Context, userID string) (Profile, error)

	// UpdateContext merges partial into the stored context and stamps
	// LastUpdateTime, even when partial is empty.
	UpdateContext(ctx context.Context, userID string, partial Context) error
	Context(ctx context.Context, userID string) (Context, error)

	// RemovePendingQuestion removes an answered question by exact match
	// without touching LastUpdateTime.
	RemovePendingQuestion(ctx context.Context, userID string, question string) error

	Close() error
}
