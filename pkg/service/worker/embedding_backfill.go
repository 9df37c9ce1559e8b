package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/utils/logging"
	"github.com/robfig/cron/v3"
)

const (
	DefaultBackfillSchedule  = "@every 5m"
	DefaultBackfillBatchSize = 50
)

// Backfiller embeds memories that were stored without a vector
type Backfiller interface {
	BackfillEmbeddings(ctx context.Context, limit int) (int, error)
}

// EmbeddingBackfillWorker periodically computes missing memory embeddings.
// It never touches match counters or rules.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - A run that overlaps the previous one is skipped
type EmbeddingBackfillWorker struct {
	backfiller Backfiller
	schedule   string
	batchSize  int

	cron    *cron.Cron
	running sync.Mutex
}

type BackfillOption func(*EmbeddingBackfillWorker)

// WithSchedule sets the cron expression, e.g. "@every 5m" or "*/10 * * * *"
func WithSchedule(schedule string) BackfillOption {
	return func(w *EmbeddingBackfillWorker) {
		w.schedule = schedule
	}
}

// WithBatchSize sets how many memories a single run embeds
func WithBatchSize(n int) BackfillOption {
	return func(w *EmbeddingBackfillWorker) {
		w.batchSize = n
	}
}

// NewEmbeddingBackfillWorker creates a new worker for embedding backfill
func NewEmbeddingBackfillWorker(backfiller Backfiller, opts ...BackfillOption) *EmbeddingBackfillWorker {
	w := &EmbeddingBackfillWorker{
		backfiller: backfiller,
		schedule:   DefaultBackfillSchedule,
		batchSize:  DefaultBackfillBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the schedule and runs an initial backfill in the background.
// Does not block server startup.
func (w *EmbeddingBackfillWorker) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.RunOnce(ctx) }); err != nil {
		return goerr.Wrap(err, "invalid backfill schedule", goerr.V("schedule", w.schedule))
	}
	w.cron = c

	logging.Default().Info("Embedding backfill worker starting",
		"schedule", w.schedule,
		"batch_size", w.batchSize)

	c.Start()
	go w.RunOnce(ctx)

	return nil
}

// Stop stops the schedule and waits for a running backfill to finish
func (w *EmbeddingBackfillWorker) Stop() {
	if w.cron == nil {
		return
	}
	logging.Default().Info("Embedding backfill worker stopping")

	stopCtx := w.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logging.Default().Warn("Embedding backfill worker stop timed out")
	}

	// wait for the initial run started outside of cron
	w.running.Lock()
	defer w.running.Unlock()
	logging.Default().Info("Embedding backfill worker stopped")
}

// RunOnce performs a single backfill cycle. It returns the number of
// memories embedded, or 0 when another cycle is still running.
func (w *EmbeddingBackfillWorker) RunOnce(ctx context.Context) int {
	if !w.running.TryLock() {
		logging.Default().Debug("Embedding backfill already running, skipped")
		return 0
	}
	defer w.running.Unlock()

	if ctx.Err() != nil {
		return 0
	}

	startTime := time.Now()
	n, err := w.backfiller.BackfillEmbeddings(ctx, w.batchSize)
	if err != nil {
		// Log error but keep the schedule
		logging.Default().Error("Embedding backfill failed (will retry next run)",
			"error", err.Error(),
			"embedded", n)
		return n
	}

	if n > 0 {
		logging.Default().Info("Embedding backfill completed",
			"embedded", n,
			"duration", time.Since(startTime).String())
	}
	return n
}
