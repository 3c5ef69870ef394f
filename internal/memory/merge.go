package memory

// Profile and context merges are shared by the in-memory and Postgres
// stores so both give identical semantics.

// MergeProfile merges the non-empty fields of partial into base and
// returns the result. Scalars overwrite only when the incoming value is
// non-zero; Interests and Goals are set unions; Preferences and Family
// are pointwise dictionary unions where the incoming value wins.
func MergeProfile(base, partial Profile) Profile {
	out := base

	if partial.Name != "" {
		out.Name = partial.Name
	}
	if partial.Age != 0 {
		out.Age = partial.Age
	}
	if partial.Occupation != "" {
		out.Occupation = partial.Occupation
	}
	if partial.Location != "" {
		out.Location = partial.Location
	}
	if partial.ContactInfo != "" {
		out.ContactInfo = partial.ContactInfo
	}
	if len(partial.Interests) > 0 {
		out.Interests = unionStrings(base.Interests, partial.Interests)
	}
	if len(partial.Goals) > 0 {
		out.Goals = unionStrings(base.Goals, partial.Goals)
	}
	if len(partial.Preferences) > 0 {
		out.Preferences = unionMaps(base.Preferences, partial.Preferences)
	}
	if len(partial.Family) > 0 {
		out.Family = unionMaps(base.Family, partial.Family)
	}

	return out
}

// maxMainTopics bounds the topic list after a merge; the oldest topics
// fall off the front.
const maxMainTopics = 10

// MergeContext merges partial into base. MainTopics are deduped by
// first occurrence and truncated to the most recent ten; CurrentContext
// is replaced wholesale when non-empty; PendingQuestions are appended
// without dedupe; References are a pointwise union. LastUpdateTime is
// the caller's concern (the stores stamp it on every update).
func MergeContext(base, partial Context) Context {
	out := base

	if len(partial.MainTopics) > 0 {
		merged := dedupeStrings(append(append([]string{}, base.MainTopics...), partial.MainTopics...))
		if len(merged) > maxMainTopics {
			merged = merged[len(merged)-maxMainTopics:]
		}
		out.MainTopics = merged
	}
	if partial.CurrentContext != "" {
		out.CurrentContext = partial.CurrentContext
	}
	if len(partial.PendingQuestions) > 0 {
		out.PendingQuestions = append(append([]string{}, base.PendingQuestions...), partial.PendingQuestions...)
	}
	if len(partial.References) > 0 {
		out.References = unionMaps(base.References, partial.References)
	}

	return out
}

// unionStrings unions two lists with set semantics. Order follows first
// occurrence, existing values first.
func unionStrings(existing, incoming []string) []string {
	return dedupeStrings(append(append([]string{}, existing...), incoming...))
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func unionMaps(existing, incoming map[string]string) map[string]string {
	out := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}
