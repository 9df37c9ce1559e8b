package model

import "strings"

// MaxKeyTopics is the upper bound of topics kept on a single memory
const MaxKeyTopics = 10

// MergeTopics appends incoming topics to existing ones, dropping blanks and
// case-insensitive duplicates. The first spelling seen wins and the result is
// capped at MaxKeyTopics.
func MergeTopics(existing, incoming []string) []string {
	merged := make([]string, 0, min(len(existing)+len(incoming), MaxKeyTopics))
	seen := make(map[string]struct{}, len(existing)+len(incoming))

	for _, src := range [][]string{existing, incoming} {
		for _, topic := range src {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				continue
			}
			key := strings.ToLower(topic)
			if _, ok := seen[key]; ok {
				continue
			}
			if len(merged) >= MaxKeyTopics {
				return merged
			}
			seen[key] = struct{}{}
			merged = append(merged, topic)
		}
	}

	return merged
}

// TopicsOverlap reports whether any memory topic matches any monitored topic.
// Two topics match when either contains the other, ignoring case. An empty
// monitored list matches everything.
func TopicsOverlap(monitored, topics []string) bool {
	if len(monitored) == 0 {
		return true
	}

	for _, m := range monitored {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		for _, t := range topics {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if strings.Contains(t, m) || strings.Contains(m, t) {
				return true
			}
		}
	}
	return false
}
