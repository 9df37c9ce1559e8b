package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

func TestNewMemoryID(t *testing.T) {
	id1 := model.NewMemoryID("agent-1", "contact-1")
	id2 := model.NewMemoryID("agent-1", "contact-1")
	id3 := model.NewMemoryID("agent-1", "contact-2")
	id4 := model.NewMemoryID("agent-2", "contact-1")

	gt.Value(t, string(id1)).NotEqual("")
	gt.Value(t, id1).Equal(id2)
	gt.Value(t, id1).NotEqual(id3)
	gt.Value(t, id1).NotEqual(id4)
}

func TestMemory_Apply(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("new memory requires embedding", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", "", now)
		required := m.Apply(&model.MemoryPatch{
			Summary:   "Customer reported a billing error",
			KeyTopics: []string{"billing error"},
		}, now)

		gt.Bool(t, required).True()
		gt.Value(t, m.Summary).Equal("Customer reported a billing error")
		gt.Array(t, m.KeyTopics).Equal([]string{"billing error"})
		gt.Number(t, m.InteractionCount).Equal(1)
	})

	t.Run("unchanged content keeps embedding", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", "", now)
		m.Apply(&model.MemoryPatch{Summary: "s", KeyTopics: []string{"a"}}, now)
		m.Embedding = []float32{1, 0}

		required := m.Apply(&model.MemoryPatch{
			KeyTopics:   []string{"A"},
			Preferences: map[string]string{"language": "en"},
		}, now.Add(time.Minute))

		gt.Bool(t, required).False()
		gt.Bool(t, m.HasEmbedding()).True()
		gt.Value(t, m.Preferences["language"]).Equal("en")
		gt.Value(t, m.UpdatedAt).Equal(now.Add(time.Minute))
	})

	t.Run("changed summary drops stale embedding", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", "", now)
		m.Apply(&model.MemoryPatch{Summary: "first"}, now)
		m.Embedding = []float32{1, 0}

		required := m.Apply(&model.MemoryPatch{Summary: "second"}, now)

		gt.Bool(t, required).True()
		gt.Bool(t, m.HasEmbedding()).False()
	})

	t.Run("new topic drops stale embedding", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", "", now)
		m.Apply(&model.MemoryPatch{Summary: "s", KeyTopics: []string{"a"}}, now)
		m.Embedding = []float32{1, 0}

		gt.Bool(t, m.Apply(&model.MemoryPatch{KeyTopics: []string{"b"}}, now)).True()
		gt.Array(t, m.KeyTopics).Equal([]string{"a", "b"})
	})

	t.Run("missing embedding is retried", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", "", now)
		m.Apply(&model.MemoryPatch{Summary: "s"}, now)

		gt.Bool(t, m.Apply(&model.MemoryPatch{}, now)).True()
	})

	t.Run("empty content needs no embedding", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", "", now)
		gt.Bool(t, m.Apply(&model.MemoryPatch{ContactName: "Alice"}, now)).False()
	})

	t.Run("blank summary does not replace", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", "", now)
		m.Apply(&model.MemoryPatch{Summary: "keep me"}, now)
		m.Apply(&model.MemoryPatch{Summary: "   "}, now)
		gt.Value(t, m.Summary).Equal("keep me")
	})

	t.Run("call history is appended and bounded", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", "", now)
		for i := range model.MaxCallHistory + 5 {
			m.Apply(&model.MemoryPatch{Call: &model.CallRecord{
				StartedAt:       now.Add(time.Duration(i) * time.Minute),
				DurationSeconds: i,
			}}, now)
		}

		gt.Array(t, m.CallHistory).Length(model.MaxCallHistory)
		gt.Number(t, m.CallHistory[0].DurationSeconds).Equal(5)
		gt.Number(t, m.LastCall().DurationSeconds).Equal(model.MaxCallHistory + 4)
	})

	t.Run("direction is kept from creation", func(t *testing.T) {
		m := model.NewMemory("agent-1", "contact-1", types.DirectionOutbound, now)
		m.Apply(&model.MemoryPatch{Direction: types.DirectionInbound}, now)
		gt.Value(t, m.Direction).Equal(types.DirectionOutbound)

		gt.Value(t, model.NewMemory("agent-1", "contact-2", "", now).Direction).Equal(types.DirectionInbound)
	})
}

func TestMemory_EmbeddingText(t *testing.T) {
	m := &model.Memory{Summary: "late delivery", KeyTopics: []string{"shipping", "refund"}}
	gt.Value(t, m.EmbeddingText()).Equal("late delivery shipping, refund")

	long := &model.Memory{Summary: strings.Repeat("é", model.MaxEmbeddingInputChars)}
	text := long.EmbeddingText()
	gt.Bool(t, len(text) <= model.MaxEmbeddingInputChars).True()
	gt.Bool(t, strings.HasSuffix(text, "é")).True()
}

func TestMemory_Clone(t *testing.T) {
	m := &model.Memory{
		KeyTopics:   []string{"a"},
		Preferences: map[string]string{"k": "v"},
		Embedding:   []float32{1},
	}
	c := m.Clone()
	c.KeyTopics[0] = "b"
	c.Preferences["k"] = "x"
	c.Embedding[0] = 2

	gt.Value(t, m.KeyTopics[0]).Equal("a")
	gt.Value(t, m.Preferences["k"]).Equal("v")
	gt.Value(t, m.Embedding[0]).Equal(float32(1))
}

func TestMemory_DominantSentiment(t *testing.T) {
	m := &model.Memory{}
	gt.Value(t, m.DominantSentiment()).Equal("unknown")

	m.CallHistory = []model.CallRecord{
		{Sentiment: "Negative"},
		{Sentiment: "positive"},
		{Sentiment: "negative"},
		{Sentiment: ""},
	}
	gt.Value(t, m.DominantSentiment()).Equal("negative")
}

func TestMergeTopics(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		want     []string
	}{
		{
			name:     "appends new topics in order",
			existing: []string{"billing"},
			incoming: []string{"refund", "shipping"},
			want:     []string{"billing", "refund", "shipping"},
		},
		{
			name:     "case-insensitive duplicates keep first spelling",
			existing: []string{"Billing Error"},
			incoming: []string{"billing error", " BILLING ERROR "},
			want:     []string{"Billing Error"},
		},
		{
			name:     "blanks are dropped",
			incoming: []string{"", "  ", "x"},
			want:     []string{"x"},
		},
		{
			name:     "capped at ten",
			existing: []string{"1", "2", "3", "4", "5", "6", "7", "8"},
			incoming: []string{"9", "10", "11", "12"},
			want:     []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Array(t, model.MergeTopics(tt.existing, tt.incoming)).Equal(tt.want)
		})
	}
}

func TestTopicsOverlap(t *testing.T) {
	tests := []struct {
		name      string
		monitored []string
		topics    []string
		want      bool
	}{
		{name: "empty monitored matches anything", monitored: nil, topics: []string{"x"}, want: true},
		{name: "empty monitored matches no topics", monitored: []string{}, topics: nil, want: true},
		{name: "exact match ignoring case", monitored: []string{"Billing Error"}, topics: []string{"billing error"}, want: true},
		{name: "monitored contained in topic", monitored: []string{"billing"}, topics: []string{"billing error"}, want: true},
		{name: "topic contained in monitored", monitored: []string{"billing error on invoice"}, topics: []string{"billing error"}, want: true},
		{name: "no overlap", monitored: []string{"shipping"}, topics: []string{"billing error"}, want: false},
		{name: "memory without topics", monitored: []string{"shipping"}, topics: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, model.TopicsOverlap(tt.monitored, tt.topics)).Equal(tt.want)
		})
	}
}
