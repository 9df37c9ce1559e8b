package usecase

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/utils/errutil"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

// Counter credits matched memories
type Counter struct {
	memories interfaces.MemoryRepository
}

func NewCounter(memories interfaces.MemoryRepository) *Counter {
	return &Counter{memories: memories}
}

// Credit adds one to the match count of every candidate and returns the
// updated memories. The triggering memory is never credited. A failed
// increment is logged and does not stop the others; the returned error then
// wraps ErrPartialIncrementFailure.
func (c *Counter) Credit(ctx context.Context, trigger *model.Memory, candidates []model.MatchCandidate) ([]*model.Memory, error) {
	updated := make([]*model.Memory, 0, len(candidates))
	var failed []model.MemoryID

	for _, candidate := range candidates {
		if candidate.MemoryID == trigger.ID {
			continue
		}

		mem, err := c.memories.IncrementMatchCount(ctx, candidate.MemoryID, 1)
		if err != nil {
			errutil.Handle(ctx, goerr.Wrap(err, "failed to increment match count",
				goerr.V(MemoryIDKey, candidate.MemoryID),
				goerr.V("trigger_memory_id", trigger.ID),
			), "match count increment failed")
			failed = append(failed, candidate.MemoryID)
			continue
		}

		logging.From(ctx).Debug("match count incremented",
			slog.String("memory_id", string(mem.ID)),
			slog.Int64("count", mem.SemanticMatchCount),
			slog.Float64("similarity", candidate.Similarity),
		)
		updated = append(updated, mem)
	}

	if len(failed) > 0 {
		return updated, goerr.Wrap(ErrPartialIncrementFailure, "some candidates were not credited",
			goerr.V("failed", failed),
			goerr.V("credited", len(updated)),
		)
	}
	return updated, nil
}
