package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/cli/config"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdSearch() *cli.Command {
	var agentID string
	var excludeContact string
	var limit int
	var threshold float64
	var repoCfg config.Repository
	var embeddingCfg config.Embedding

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "agent",
			Aliases:     []string{"a"},
			Usage:       "Agent whose memories are searched",
			Required:    true,
			Sources:     cli.EnvVars("RECURRA_SEARCH_AGENT"),
			Destination: &agentID,
		},
		&cli.StringFlag{
			Name:        "exclude-contact",
			Usage:       "Contact whose memory is left out of the results",
			Destination: &excludeContact,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum results (agent's max_results when 0)",
			Destination: &limit,
		},
		&cli.FloatFlag{
			Name:        "threshold",
			Usage:       "Minimum similarity (agent's similarity_threshold when negative)",
			Value:       -1,
			Destination: &threshold,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, embeddingCfg.Flags()...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search an agent's memories by meaning",
		ArgsUsage: "QUERY...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return goerr.New("search query is required")
			}

			eng, err := setupEngine(ctx, &repoCfg, &embeddingCfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			q := usecase.SearchQuery{
				Text:             text,
				ExcludeContactID: model.ContactID(excludeContact),
				Limit:            limit,
			}
			if threshold >= 0 {
				q.Threshold = &threshold
			}

			results, err := eng.uc.Memory.SearchMemories(ctx, model.AgentID(agentID), q)
			if err != nil {
				return goerr.Wrap(err, "search failed")
			}

			printSearchResults(color.Output, text, results)
			return nil
		},
	}
}

var (
	headerColor = color.New(color.Bold)
	highColor   = color.New(color.FgGreen, color.Bold)
	midColor    = color.New(color.FgYellow)
	labelColor  = color.New(color.FgCyan)
	faintColor  = color.New(color.Faint)
)

func similarityColor(sim float64) *color.Color {
	if sim >= 0.9 {
		return highColor
	}
	return midColor
}

func printSearchResults(w io.Writer, query string, results []*model.MemorySearchResult) {
	headerColor.Fprintf(w, "%d result(s) for %q\n", len(results), query) //nolint:errcheck

	for i, r := range results {
		mem := r.Memory
		name := mem.ContactName
		if name == "" {
			name = string(mem.ContactID)
		}

		fmt.Fprintf(w, "\n%2d. %s  %s\n", i+1, //nolint:errcheck
			similarityColor(r.Similarity).Sprintf("%.3f", r.Similarity),
			headerColor.Sprint(name))
		fmt.Fprintf(w, "    %s %s\n", labelColor.Sprint("summary:"), mem.Summary) //nolint:errcheck
		if len(mem.KeyTopics) > 0 {
			fmt.Fprintf(w, "    %s %s\n", labelColor.Sprint("topics:"), strings.Join(mem.KeyTopics, ", ")) //nolint:errcheck
		}
		fmt.Fprintf(w, "    %s %d  %s\n", labelColor.Sprint("matches:"), mem.SemanticMatchCount, //nolint:errcheck
			faintColor.Sprintf("(%s, updated %s)", mem.ID, mem.UpdatedAt.Format("2006-01-02 15:04")))
	}
}
