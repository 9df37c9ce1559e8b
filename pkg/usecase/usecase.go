package usecase

import (
	"time"

	"github.com/magpipe/recurra/pkg/domain/interfaces"
)

const (
	DefaultDeliveryTimeout     = 10 * time.Second
	DefaultSearchTimeout       = 10 * time.Second
	DefaultDispatchConcurrency = 4

	// added to the delivery timeout so a lease outlives the delivery it guards
	leaseMargin = 30 * time.Second
)

type UseCases struct {
	repo     interfaces.Repository
	embedder interfaces.Embedder
	store    interfaces.EmbeddingStore
	notifier interfaces.Connector
	clock    func() time.Time

	deliveryTimeout     time.Duration
	searchTimeout       time.Duration
	dispatchConcurrency int

	Memory       *MemoryUseCase
	Rule         *RuleUseCase
	AgentConfig  *AgentConfigUseCase
	Conversation *ConversationUseCase
}

type Option func(*UseCases)

func WithEmbedder(embedder interfaces.Embedder) Option {
	return func(uc *UseCases) {
		uc.embedder = embedder
	}
}

// WithEmbeddingStore replaces the repository's own embedding store, e.g.
// with an embedded vector database in front of a SQL backend
func WithEmbeddingStore(store interfaces.EmbeddingStore) Option {
	return func(uc *UseCases) {
		uc.store = store
	}
}

func WithNotifier(notifier interfaces.Connector) Option {
	return func(uc *UseCases) {
		uc.notifier = notifier
	}
}

func WithClock(clock func() time.Time) Option {
	return func(uc *UseCases) {
		uc.clock = clock
	}
}

func WithDeliveryTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		if d > 0 {
			uc.deliveryTimeout = d
		}
	}
}

func WithSearchTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		if d > 0 {
			uc.searchTimeout = d
		}
	}
}

func WithDispatchConcurrency(n int) Option {
	return func(uc *UseCases) {
		if n > 0 {
			uc.dispatchConcurrency = n
		}
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:                repo,
		store:               repo.Embedding(),
		clock:               time.Now,
		deliveryTimeout:     DefaultDeliveryTimeout,
		searchTimeout:       DefaultSearchTimeout,
		dispatchConcurrency: DefaultDispatchConcurrency,
	}

	for _, opt := range opts {
		opt(uc)
	}

	embeddings := newEmbeddingWriter(repo.Memory(), uc.store, uc.embedder)
	matcher := NewMatcher(uc.store, embeddings, uc.searchTimeout)
	counter := NewCounter(repo.Memory())
	evaluator := NewEvaluator(repo.Rule())
	gate := NewDispatchGate(repo.Rule(), repo.AlertLog(), uc.notifier,
		WithGateClock(uc.clock),
		WithGateDeliveryTimeout(uc.deliveryTimeout),
	)

	uc.AgentConfig = NewAgentConfigUseCase(repo)
	uc.Memory = NewMemoryUseCase(repo, uc.store, embeddings, uc.AgentConfig, uc.searchTimeout)
	uc.Rule = NewRuleUseCase(repo, uc.notifier)
	uc.Conversation = NewConversationUseCase(repo, uc.AgentConfig, matcher, counter, evaluator, gate, uc.dispatchConcurrency)

	return uc
}
