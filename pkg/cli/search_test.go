package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/model"
)

func TestPrintSearchResults(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	printSearchResults(&buf, "billing", []*model.MemorySearchResult{
		{
			Memory: &model.Memory{
				ID:                 "m-1",
				ContactName:        "Alice",
				Summary:            "Double charged on invoice",
				KeyTopics:          []string{"billing", "refund"},
				SemanticMatchCount: 3,
				UpdatedAt:          time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			Similarity: 0.912,
		},
		{
			Memory:     &model.Memory{ID: "m-2", ContactID: "c-2", Summary: "Card declined"},
			Similarity: 0.8,
		},
	})

	out := buf.String()
	gt.String(t, out).Contains(`2 result(s) for "billing"`)
	gt.String(t, out).Contains("0.912  Alice")
	gt.String(t, out).Contains("topics: billing, refund")
	gt.String(t, out).Contains("matches: 3  (m-1, updated 2026-03-01 10:00)")
	gt.String(t, out).Contains("0.800  c-2")
	gt.String(t, out).NotContains("topics: \n")
}
