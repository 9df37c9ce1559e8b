package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/cli/config"
	httpctrl "github.com/magpipe/recurra/pkg/controller/http"
	"github.com/magpipe/recurra/pkg/service/worker"
	"github.com/magpipe/recurra/pkg/usecase"
	"github.com/magpipe/recurra/pkg/utils/async"
	"github.com/magpipe/recurra/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func cmdServe() *cli.Command {
	var addr string
	var apiToken string
	var ingestSecret string
	var deliveryTimeout time.Duration
	var dispatchConcurrency int
	var backfillSchedule string
	var backfillBatchSize int
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var embeddingCfg config.Embedding
	var slackCfg config.Slack
	var notifierCfg config.Notifier

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("RECURRA_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "api-token",
			Usage:       "Bearer token required on the operator API (open when empty)",
			Category:    "Authentication",
			Sources:     cli.EnvVars("RECURRA_API_TOKEN"),
			Destination: &apiToken,
		},
		&cli.StringFlag{
			Name:        "ingest-secret",
			Usage:       "HMAC secret signing conversation events (unsigned when empty)",
			Category:    "Authentication",
			Sources:     cli.EnvVars("RECURRA_INGEST_SECRET"),
			Destination: &ingestSecret,
		},
		&cli.DurationFlag{
			Name:        "delivery-timeout",
			Usage:       "Timeout of a single alert delivery",
			Value:       usecase.DefaultDeliveryTimeout,
			Sources:     cli.EnvVars("RECURRA_DELIVERY_TIMEOUT"),
			Destination: &deliveryTimeout,
		},
		&cli.IntFlag{
			Name:        "dispatch-concurrency",
			Usage:       "Rule dispatches run in parallel per conversation",
			Value:       usecase.DefaultDispatchConcurrency,
			Sources:     cli.EnvVars("RECURRA_DISPATCH_CONCURRENCY"),
			Destination: &dispatchConcurrency,
		},
		&cli.StringFlag{
			Name:        "backfill-schedule",
			Usage:       "Cron schedule of the embedding backfill worker",
			Category:    "Worker",
			Value:       worker.DefaultBackfillSchedule,
			Sources:     cli.EnvVars("RECURRA_BACKFILL_SCHEDULE"),
			Destination: &backfillSchedule,
		},
		&cli.IntFlag{
			Name:        "backfill-batch-size",
			Usage:       "Memories embedded per backfill run",
			Category:    "Worker",
			Value:       worker.DefaultBackfillBatchSize,
			Sources:     cli.EnvVars("RECURRA_BACKFILL_BATCH_SIZE"),
			Destination: &backfillBatchSize,
		},
	}

	// Add shared config flags
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, embeddingCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, notifierCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			agents, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load agent configurations")
			}

			slackSvc, err := slackCfg.Configure()
			if err != nil {
				return err
			}
			notifier, err := notifierCfg.Configure(slackSvc)
			if err != nil {
				return goerr.Wrap(err, "failed to configure notifier")
			}
			logging.Default().Info("Alert channels configured", "notifier", notifierCfg, "slack", slackCfg)

			eng, err := setupEngine(ctx, &repoCfg, &embeddingCfg,
				usecase.WithNotifier(notifier),
				usecase.WithDeliveryTimeout(deliveryTimeout),
				usecase.WithDispatchConcurrency(dispatchConcurrency),
			)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.uc.AgentConfig.Seed(ctx, agents); err != nil {
				return goerr.Wrap(err, "failed to seed agent configurations")
			}
			if len(agents) > 0 {
				logging.Default().Info("Agent configurations loaded", "count", len(agents))
			}

			// Backfill only makes progress with an embedding provider
			var backfillWorker *worker.EmbeddingBackfillWorker
			if eng.embedder != nil {
				backfillWorker = worker.NewEmbeddingBackfillWorker(eng.uc.Memory,
					worker.WithSchedule(backfillSchedule),
					worker.WithBatchSize(backfillBatchSize),
				)
				if err := backfillWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start embedding backfill worker")
				}
			}

			var httpOpts []httpctrl.Options
			if apiToken != "" {
				httpOpts = append(httpOpts, httpctrl.WithAPIToken(apiToken))
			} else {
				logging.Default().Warn("Operator API is not protected by a token")
			}
			if ingestSecret != "" {
				httpOpts = append(httpOpts, httpctrl.WithIngestSecret(ingestSecret))
			}

			httpHandler, err := httpctrl.New(eng.uc, httpOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if backfillWorker != nil {
					backfillWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				// Conversations accepted before shutdown finish their matching pass
				if err := async.Wait(shutdownCtx); err != nil {
					logging.Default().Warn("Pending conversations not finished before shutdown", "error", err)
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
