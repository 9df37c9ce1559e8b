package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
	"github.com/magpipe/recurra/pkg/utils/errutil"
	"github.com/magpipe/recurra/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// ConversationEvent is emitted by the conversation pipeline once per
// completed call or message thread
type ConversationEvent struct {
	AgentID         model.AgentID     `json:"agent_id"`
	ContactID       model.ContactID   `json:"contact_id"`
	ContactName     string            `json:"contact_name,omitempty"`
	ContactPhone    string            `json:"contact_phone,omitempty"`
	Summary         string            `json:"summary"`
	KeyTopics       []string          `json:"key_topics"`
	Preferences     map[string]string `json:"preferences,omitempty"`
	Direction       types.Direction   `json:"direction,omitempty"`
	CallID          string            `json:"call_id,omitempty"`
	DurationSeconds int               `json:"duration_seconds,omitempty"`
	CallSummary     string            `json:"call_summary,omitempty"`
	Sentiment       string            `json:"sentiment,omitempty"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

func (e *ConversationEvent) Validate() error {
	if strings.TrimSpace(string(e.AgentID)) == "" {
		return goerr.Wrap(ErrInvalidEvent, "agent_id is required")
	}
	if strings.TrimSpace(string(e.ContactID)) == "" {
		return goerr.Wrap(ErrInvalidEvent, "contact_id is required")
	}
	if e.Direction != "" && !e.Direction.IsValid() {
		return goerr.Wrap(ErrInvalidEvent, "invalid direction", goerr.V("direction", e.Direction))
	}
	return nil
}

func (e *ConversationEvent) patch(now time.Time) *model.MemoryPatch {
	started := e.OccurredAt
	if started.IsZero() {
		started = now
	}
	direction := e.Direction
	if direction == "" {
		direction = types.DirectionInbound
	}

	return &model.MemoryPatch{
		ContactName:  e.ContactName,
		ContactPhone: e.ContactPhone,
		Summary:      e.Summary,
		KeyTopics:    e.KeyTopics,
		Preferences:  e.Preferences,
		Direction:    direction,
		Call: &model.CallRecord{
			CallID:          e.CallID,
			StartedAt:       started.UTC(),
			DurationSeconds: e.DurationSeconds,
			Summary:         e.CallSummary,
			Sentiment:       e.Sentiment,
			Direction:       direction,
		},
	}
}

// ConversationResult reports what one event did. Non-fatal failures are
// carried here after being logged.
type ConversationResult struct {
	Memory       *model.Memory          `json:"memory"`
	Candidates   []model.MatchCandidate `json:"candidates"`
	Credited     []*model.Memory        `json:"credited"`
	Dispatches   []*DispatchResult      `json:"dispatches"`
	EmbeddingErr error                  `json:"-"`
	IncrementErr error                  `json:"-"`
}

type ConversationUseCase struct {
	repo        interfaces.Repository
	configs     *AgentConfigUseCase
	matcher     *Matcher
	counter     *Counter
	evaluator   *Evaluator
	gate        *DispatchGate
	concurrency int
}

func NewConversationUseCase(repo interfaces.Repository, configs *AgentConfigUseCase, matcher *Matcher, counter *Counter, evaluator *Evaluator, gate *DispatchGate, concurrency int) *ConversationUseCase {
	if concurrency <= 0 {
		concurrency = DefaultDispatchConcurrency
	}
	return &ConversationUseCase{
		repo:        repo,
		configs:     configs,
		matcher:     matcher,
		counter:     counter,
		evaluator:   evaluator,
		gate:        gate,
		concurrency: concurrency,
	}
}

// OnConversationComplete merges the event into the contact's memory, then
// matches it against the agent's other memories, credits the matches and
// dispatches every rule the credited memories now satisfy.
//
// Only a failure to save the memory is returned as an error. A missing
// embedding skips matching; failed increments and deliveries are logged and
// reported on the result.
func (uc *ConversationUseCase) OnConversationComplete(ctx context.Context, ev ConversationEvent) (*ConversationResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	ctx = logging.With(ctx, logging.From(ctx).With(
		slog.String("agent_id", string(ev.AgentID)),
		slog.String("contact_id", string(ev.ContactID)),
	))

	cfg, err := uc.configs.GetConfig(ctx, ev.AgentID)
	if err != nil {
		return nil, err
	}

	mem, _, err := uc.repo.Memory().Upsert(ctx, ev.AgentID, ev.ContactID, ev.patch(uc.gate.clock()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save memory",
			goerr.V(AgentIDKey, ev.AgentID),
			goerr.V("contact_id", ev.ContactID),
		)
	}
	result := &ConversationResult{Memory: mem}

	if !cfg.SemanticMemory.Enabled {
		// keep the vector current so matching works once re-enabled
		if err := uc.matcher.embeddings.Ensure(ctx, mem); err != nil && !errors.Is(err, model.ErrStaleEmbedding) {
			result.EmbeddingErr = err
			errutil.Handle(ctx, err, "embedding unavailable")
		}
		return result, nil
	}

	candidates, err := uc.matcher.FindSimilar(ctx, mem, cfg.SemanticMemory)
	if err != nil {
		if errors.Is(err, model.ErrStaleEmbedding) {
			// a newer conversation of this contact does its own matching pass
			logging.From(ctx).Info("memory superseded while embedding, matching skipped",
				slog.String("memory_id", string(mem.ID)))
			return result, nil
		}
		if errors.Is(err, ErrEmbeddingUnavailable) {
			result.EmbeddingErr = err
			errutil.Handle(ctx, err, "embedding unavailable, matching skipped")
			return result, nil
		}
		errutil.Handle(ctx, err, "similarity search failed, matching skipped")
		return result, nil
	}
	result.Candidates = candidates
	if len(candidates) == 0 {
		return result, nil
	}

	credited, err := uc.counter.Credit(ctx, mem, candidates)
	result.Credited = credited
	if err != nil {
		result.IncrementErr = err
	}

	result.Dispatches = uc.dispatch(ctx, credited, cfg.DisplayName())
	return result, nil
}

type dispatchJob struct {
	rule *model.SemanticMatchAction
	mem  *model.Memory
}

// dispatch evaluates every credited memory and runs the gate for each
// eligible rule with bounded concurrency
func (uc *ConversationUseCase) dispatch(ctx context.Context, credited []*model.Memory, agentName string) []*DispatchResult {
	var jobs []dispatchJob
	for _, mem := range credited {
		rules, err := uc.evaluator.Evaluate(ctx, mem)
		if err != nil {
			errutil.Handle(ctx, err, "rule evaluation failed")
			continue
		}
		for _, rule := range rules {
			jobs = append(jobs, dispatchJob{rule: rule, mem: mem})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		results = make([]*DispatchResult, 0, len(jobs))
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(uc.concurrency)
	for _, job := range jobs {
		eg.Go(func() error {
			res := uc.gate.Dispatch(egCtx, job.rule, job.mem, agentName)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	return results
}
