package usecase_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
	"github.com/magpipe/recurra/pkg/repository/memory"
	"github.com/magpipe/recurra/pkg/usecase"
)

const testAgentID model.AgentID = "agent-x"

// fakeEmbedder returns the vector registered for the longest key that
// prefixes the input text
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{}}
}

func (f *fakeEmbedder) set(key string, vec ...float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[key] = vec
}

func (f *fakeEmbedder) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	best := ""
	for key := range f.vectors {
		if strings.HasPrefix(text, key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return nil, errors.New("no vector registered for text: " + text)
	}
	return append([]float32{}, f.vectors[best]...), nil
}

// unitWith returns a 2-dimensional vector whose cosine similarity to [1, 0]
// is sim
func unitWith(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

type delivery struct {
	Config  model.ActionConfig
	Payload *model.AlertPayload
}

// recordingConnector records deliveries. deliverFn, when set, decides the
// outcome of each call.
type recordingConnector struct {
	mu        sync.Mutex
	delivered []delivery
	deliverFn func(ctx context.Context) (bool, error)
}

func (c *recordingConnector) Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (bool, error) {
	c.mu.Lock()
	fn := c.deliverFn
	c.mu.Unlock()

	if fn != nil {
		ok, err := fn(ctx)
		if err != nil || !ok {
			return false, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, delivery{Config: cfg, Payload: payload})
	return true, nil
}

func (c *recordingConnector) setDeliverFn(fn func(ctx context.Context) (bool, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliverFn = fn
}

func (c *recordingConnector) deliveries() []delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]delivery{}, c.delivered...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type harness struct {
	repo      interfaces.Repository
	embedder  *fakeEmbedder
	connector *recordingConnector
	clock     *testClock
	uc        *usecase.UseCases
}

func newHarness(t *testing.T, opts ...usecase.Option) *harness {
	t.Helper()
	return newHarnessWithRepo(t, memory.New(), opts...)
}

func newHarnessWithRepo(t *testing.T, repo interfaces.Repository, opts ...usecase.Option) *harness {
	t.Helper()
	h := &harness{
		repo:      repo,
		embedder:  newFakeEmbedder(),
		connector: &recordingConnector{},
		clock:     newTestClock(),
	}
	base := []usecase.Option{
		usecase.WithEmbedder(h.embedder),
		usecase.WithNotifier(h.connector),
		usecase.WithClock(h.clock.Now),
	}
	h.uc = usecase.New(repo, append(base, opts...)...)
	return h
}

// converse runs a conversation for contact with a summary registered in the
// embedder and fails the test on error
func (h *harness) converse(t *testing.T, contact model.ContactID, summary string, topics ...string) *usecase.ConversationResult {
	t.Helper()
	res, err := h.uc.Conversation.OnConversationComplete(context.Background(), usecase.ConversationEvent{
		AgentID:     testAgentID,
		ContactID:   contact,
		ContactName: "Caller " + string(contact),
		Summary:     summary,
		KeyTopics:   topics,
		Sentiment:   "negative",
	})
	gt.NoError(t, err).Required()
	return res
}

func (h *harness) memoryOf(t *testing.T, contact model.ContactID) *model.Memory {
	t.Helper()
	mem, err := h.repo.Memory().Get(context.Background(), model.NewMemoryID(testAgentID, contact))
	gt.NoError(t, err).Required()
	return mem
}

func (h *harness) putConfig(t *testing.T, threshold float64, maxResults int) {
	t.Helper()
	_, err := h.uc.AgentConfig.PutConfig(context.Background(), &model.AgentConfig{
		AgentID: testAgentID,
		Name:    "Front Desk",
		SemanticMemory: model.SemanticMemoryConfig{
			Enabled:             true,
			SimilarityThreshold: threshold,
			MaxResults:          maxResults,
		},
	})
	gt.NoError(t, err).Required()
}

func int64Ptr(v int64) *int64 { return &v }

func (h *harness) createRule(t *testing.T, name string, threshold, cooldown int64, topics ...string) *model.SemanticMatchAction {
	t.Helper()
	rule, err := h.uc.Rule.CreateRule(context.Background(), testAgentID, usecase.RuleInput{
		Name:            name,
		MonitoredTopics: topics,
		MatchThreshold:  int64Ptr(threshold),
		CooldownMinutes: int64Ptr(cooldown),
		ActionConfig: &model.ActionConfig{
			Type:  types.ActionTypeSlack,
			Slack: &model.SlackConfig{ChannelName: "#alerts"},
		},
	})
	gt.NoError(t, err).Required()
	return rule
}
