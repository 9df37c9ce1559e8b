package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/cli/config"
	"github.com/magpipe/recurra/pkg/service/worker"
	"github.com/magpipe/recurra/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdBackfill() *cli.Command {
	var limit int
	var repoCfg config.Repository
	var embeddingCfg config.Embedding

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum memories to embed",
			Value:       worker.DefaultBackfillBatchSize,
			Destination: &limit,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, embeddingCfg.Flags()...)

	return &cli.Command{
		Name:  "backfill",
		Usage: "Embed memories stored without a vector",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if limit <= 0 {
				return goerr.New("limit must be positive", goerr.V("limit", limit))
			}

			eng, err := setupEngine(ctx, &repoCfg, &embeddingCfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			n, err := eng.uc.Memory.BackfillEmbeddings(ctx, limit)
			if err != nil {
				return goerr.Wrap(err, "backfill failed", goerr.V("embedded", n))
			}

			logging.Default().Info("Backfill completed", "embedded", n)
			return nil
		},
	}
}
