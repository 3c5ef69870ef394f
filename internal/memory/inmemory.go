package memory

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-process memory store. It is the default backend when
// no database is configured and the one the tests exercise.
type MemStore struct {
	mu          sync.RWMutex
	transcripts map[string][]Turn
	profiles    map[string]Profile
	contexts    map[string]Context
	now         func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		transcripts: make(map[string][]Turn),
		profiles:    make(map[string]Profile),
		contexts:    make(map[string]Context),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock. Tests use it to freeze timestamps.
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemStore) SaveTranscript(_ context.Context, userID string, turns []Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleSystem {
			continue
		}
		if t.Timestamp.IsZero() {
			t.Timestamp = s.now()
		}
		filtered = append(filtered, t)
	}
	// Replace-on-save: the previous transcript for this user is gone.
	s.transcripts[userID] = filtered
	return nil
}

func (s *MemStore) Transcript(_ context.Context, userID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.transcripts[userID]
	out := make([]Turn, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemStore) UpdateProfile(_ context.Context, userID string, partial Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = MergeProfile(s.profiles[userID], partial)
	return nil
}

func (s *MemStore) Profile(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userID], nil
}

func (s *MemStore) UpdateContext(_ context.Context, userID string, partial Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := s.contexts[userID]
	if !ok {
		base = NewContext()
	}
	merged := MergeContext(base, partial)
	// Stamped unconditionally, even when partial carried nothing.
	merged.LastUpdateTime = s.now()
	s.contexts[userID] = merged
	return nil
}

func (s *MemStore) Context(_ context.Context, userID string) (Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[userID]
	if !ok {
		return NewContext(), nil
	}
	return c, nil
}

func (s *MemStore) RemovePendingQuestion(_ context.Context, userID string, question string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[userID]
	if !ok {
		return nil
	}
	kept := make([]string, 0, len(c.PendingQuestions))
	for _, q := range c.PendingQuestions {
		if q != question {
			kept = append(kept, q)
		}
	}
	c.PendingQuestions = kept
	s.contexts[userID] = c
	return nil
}

func (s *MemStore) Close() error { return nil }
