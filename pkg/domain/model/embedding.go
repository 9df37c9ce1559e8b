package model

import (
	"math"
	"sort"
	"time"
)

// EmbeddingRecord is a memory vector as held by an embedding store
type EmbeddingRecord struct {
	MemoryID  MemoryID
	AgentID   AgentID
	ContactID ContactID
	Vector    []float32
	UpdatedAt time.Time
}

// EmbeddingMatch is a single nearest-neighbor hit
type EmbeddingMatch struct {
	MemoryID   MemoryID  `json:"memory_id"`
	ContactID  ContactID `json:"contact_id"`
	Similarity float64   `json:"similarity"`
	UpdatedAt  time.Time `json:"-"`
}

// MatchCandidate is a memory of another contact resembling the triggering one
type MatchCandidate = EmbeddingMatch

// MemorySearchResult pairs a memory with its similarity to an operator query
type MemorySearchResult struct {
	Memory     *Memory `json:"memory"`
	Similarity float64 `json:"similarity"`
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different length or zero magnitude yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// RankMatches drops negative scores, sorts by similarity descending with the
// most recently updated memory first on ties, and truncates to limit.
func RankMatches(matches []EmbeddingMatch, limit int) []EmbeddingMatch {
	out := make([]EmbeddingMatch, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < 0 {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
