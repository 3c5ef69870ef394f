package memory

import (
	"sort"
	"testing"
)

func TestMergeProfileUnionsListsAcrossUpdates(t *testing.T) {
	var p Profile
	updates := []Profile{
		{Interests: []string{"등산", "독서"}},
		{Interests: []string{"독서", "요리"}, Goals: []string{"이직"}},
		{Goals: []string{"이직", "마라톤 완주"}},
	}
	for _, u := range updates {
		p = MergeProfile(p, u)
	}

	wantInterests := []string{"독서", "등산", "요리"}
	gotInterests := append([]string{}, p.Interests...)
	sort.Strings(gotInterests)
	if len(gotInterests) != len(wantInterests) {
		t.Fatalf("Interests = %v, want union %v", p.Interests, wantInterests)
	}
	for i := range wantInterests {
		if gotInterests[i] != wantInterests[i] {
			t.Fatalf("Interests = %v, want union %v", p.Interests, wantInterests)
		}
	}
	if len(p.Goals) != 2 {
		t.Fatalf("Goals = %v, want 2 distinct goals", p.Goals)
	}
}

func TestMergeProfileEmptyFieldsNeverClear(t *testing.T) {
	base := Profile{
		Name:        "민수",
		Age:         29,
		Interests:   []string{"등산"},
		Preferences: map[string]string{"음식": "김치찌개"},
	}

	got := MergeProfile(base, Profile{})
	if got.Name != "민수" || got.Age != 29 {
		t.Fatalf("empty partial cleared scalars: %+v", got)
	}
	if len(got.Interests) != 1 || len(got.Preferences) != 1 {
		t.Fatalf("empty partial cleared collections: %+v", got)
	}

	got = MergeProfile(base, Profile{Name: "민수정", Occupation: "개발자"})
	if got.Name != "민수정" {
		t.Fatalf("Name = %q, want incoming value to win", got.Name)
	}
	if got.Occupation != "개발자" {
		t.Fatalf("Occupation = %q, want newly set value", got.Occupation)
	}
	if got.Age != 29 {
		t.Fatalf("Age = %d, want untouched", got.Age)
	}
}

func TestMergeProfileDictionariesIncomingWins(t *testing.T) {
	base := Profile{
		Preferences: map[string]string{"음악": "재즈", "음식": "파스타"},
		Family:      map[string]string{"동생": "지수"},
	}
	got := MergeProfile(base, Profile{
		Preferences: map[string]string{"음악": "클래식"},
		Family:      map[string]string{"어머니": "영희"},
	})

	if got.Preferences["음악"] != "클래식" {
		t.Fatalf("Preferences[음악] = %q, want incoming value", got.Preferences["음악"])
	}
	if got.Preferences["음식"] != "파스타" {
		t.Fatalf("Preferences[음식] = %q, want existing value kept", got.Preferences["음식"])
	}
	if len(got.Family) != 2 {
		t.Fatalf("Family = %v, want pointwise union", got.Family)
	}
}

func TestMergeContextTopicsDedupeAndCap(t *testing.T) {
	c := NewContext()
	for _, topics := range [][]string{
		{"t1", "t2", "t3"},
		{"t2", "t4", "t5", "t6"},
		{"t7", "t8", "t9", "t10", "t11", "t12"},
	} {
		c = MergeContext(c, Context{MainTopics: topics})
	}

	if len(c.MainTopics) > maxMainTopics {
		t.Fatalf("MainTopics length = %d, want <= %d", len(c.MainTopics), maxMainTopics)
	}
	seen := map[string]bool{}
	for _, topic := range c.MainTopics {
		if seen[topic] {
			t.Fatalf("duplicate topic %q in %v", topic, c.MainTopics)
		}
		seen[topic] = true
	}
	// The most recently merged topics survive truncation.
	if c.MainTopics[len(c.MainTopics)-1] != "t12" {
		t.Fatalf("last topic = %q, want %q", c.MainTopics[len(c.MainTopics)-1], "t12")
	}
	if seen["t1"] {
		t.Fatalf("oldest topic t1 should have fallen off: %v", c.MainTopics)
	}
}

func TestMergeContextFieldSemantics(t *testing.T) {
	base := NewContext()
	base.CurrentContext = "이사 준비 이야기"
	base.PendingQuestions = []string{"언제 이사해?"}
	base.References = map[string]string{"책": "어린 왕자"}

	got := MergeContext(base, Context{
		PendingQuestions: []string{"언제 이사해?"},
		References:       map[string]string{"영화": "인터스텔라"},
	})

	if got.CurrentContext != "이사 준비 이야기" {
		t.Fatalf("CurrentContext = %q, want kept when incoming empty", got.CurrentContext)
	}
	if len(got.PendingQuestions) != 2 {
		t.Fatalf("PendingQuestions = %v, want append without dedupe", got.PendingQuestions)
	}
	if len(got.References) != 2 {
		t.Fatalf("References = %v, want union", got.References)
	}

	got = MergeContext(got, Context{CurrentContext: "이사 완료"})
	if got.CurrentContext != "이사 완료" {
		t.Fatalf("CurrentContext = %q, want wholesale replacement", got.CurrentContext)
	}
}
