package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/magpipe/recurra/pkg/controller/http"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/repository/memory"
	"github.com/magpipe/recurra/pkg/usecase"
	"github.com/magpipe/recurra/pkg/utils/async"
)

// stubEmbedder returns the same vector for every input
type stubEmbedder struct {
	mu  sync.Mutex
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return append([]float32{}, e.vec...), nil
}

type acceptAll struct{}

func (acceptAll) Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (bool, error) {
	return true, nil
}

func newServer(t *testing.T, embedder *stubEmbedder, opts ...httpctrl.Options) http.Handler {
	t.Helper()
	uc := usecase.New(memory.New(),
		usecase.WithEmbedder(embedder),
		usecase.WithNotifier(acceptAll{}),
	)
	srv, err := httpctrl.New(uc, opts...)
	gt.NoError(t, err).Required()
	return srv
}

func send(t *testing.T, h http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		data, err := json.Marshal(v)
		gt.NoError(t, err).Required()
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v)).Required()
	return v
}

func waitAsync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	gt.NoError(t, async.Wait(ctx)).Required()
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &stubEmbedder{vec: []float32{1, 0}})

	rec := send(t, srv, http.MethodGet, "/health", nil, nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.String(t, rec.Body.String()).Contains(`"ok"`)
}

func TestConversationIngest(t *testing.T) {
	srv := newServer(t, &stubEmbedder{vec: []float32{1, 0}})

	first := send(t, srv, http.MethodPost, "/api/agents/agent-1/conversations", map[string]any{
		"contact_id": "c-1",
		"summary":    "Customer reported a billing error",
		"key_topics": []string{"billing error"},
	}, nil)
	gt.Value(t, first.Code).Equal(http.StatusAccepted)
	accepted := decode[map[string]string](t, first)
	gt.Value(t, accepted["memory_id"]).Equal(string(model.NewMemoryID("agent-1", "c-1")))
	waitAsync(t)

	second := send(t, srv, http.MethodPost, "/api/agents/agent-1/conversations", map[string]any{
		"agent_id":   "agent-1",
		"contact_id": "c-2",
		"summary":    "Another caller with a billing error",
		"key_topics": []string{"billing error"},
	}, nil)
	gt.Value(t, second.Code).Equal(http.StatusAccepted)
	waitAsync(t)

	rec := send(t, srv, http.MethodGet, "/api/memories/"+accepted["memory_id"], nil, nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	mem := decode[model.Memory](t, rec)
	gt.Value(t, mem.Summary).Equal("Customer reported a billing error")
	gt.Number(t, mem.SemanticMatchCount).Equal(1)

	list := send(t, srv, http.MethodGet, "/api/agents/agent-1/memories", nil, nil)
	gt.Value(t, list.Code).Equal(http.StatusOK)
	gt.Array(t, decode[struct {
		Memories []*model.Memory `json:"memories"`
	}](t, list).Memories).Length(2)

	similar := send(t, srv, http.MethodGet, "/api/memories/"+accepted["memory_id"]+"/similar", nil, nil)
	gt.Value(t, similar.Code).Equal(http.StatusOK)
	results := decode[struct {
		Results []*model.MemorySearchResult `json:"results"`
	}](t, similar).Results
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Memory.ContactID).Equal(model.ContactID("c-2"))

	// read-only: the similar lookup leaves counts unchanged
	rec = send(t, srv, http.MethodGet, "/api/memories/"+accepted["memory_id"], nil, nil)
	gt.Number(t, decode[model.Memory](t, rec).SemanticMatchCount).Equal(1)
}

func TestConversationIngest_Invalid(t *testing.T) {
	srv := newServer(t, &stubEmbedder{vec: []float32{1, 0}})

	testCases := []struct {
		name string
		body any
	}{
		{name: "missing contact", body: map[string]any{"summary": "s"}},
		{name: "agent mismatch", body: map[string]any{"agent_id": "other", "contact_id": "c-1"}},
		{name: "unknown field", body: `{"contact_id":"c-1","bogus":true}`},
		{name: "malformed json", body: `{"contact_id":`},
		{name: "invalid direction", body: map[string]any{"contact_id": "c-1", "direction": "sideways"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/conversations", tc.body, nil)
			gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
			gt.String(t, rec.Body.String()).Contains(`"error"`)
		})
	}
}

func TestConversationIngest_Signature(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	secret := "ingest-secret"
	srv := newServer(t, &stubEmbedder{vec: []float32{1, 0}},
		httpctrl.WithIngestSecret(secret),
		httpctrl.WithClock(func() time.Time { return now }),
	)

	body := `{"contact_id":"c-1","summary":"late delivery"}`
	ts := strconv.FormatInt(now.Unix(), 10)

	t.Run("unsigned request is rejected", func(t *testing.T) {
		rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/conversations", body, nil)
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/conversations", body, http.Header{
			"X-Recurra-Timestamp": {ts},
			"X-Recurra-Signature": {httpctrl.ComputeSignature("other", ts, []byte(body))},
		})
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("signed request is accepted", func(t *testing.T) {
		rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/conversations", body, http.Header{
			"X-Recurra-Timestamp": {ts},
			"X-Recurra-Signature": {httpctrl.ComputeSignature(secret, ts, []byte(body))},
		})
		gt.Value(t, rec.Code).Equal(http.StatusAccepted)
		waitAsync(t)
	})

	t.Run("operator API is not signature protected", func(t *testing.T) {
		rec := send(t, srv, http.MethodGet, "/api/agents/agent-1/config", nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
	})
}

func TestVerifySignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	body := []byte(`{"contact_id":"c-1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	valid := httpctrl.ComputeSignature("secret", ts, body)

	testCases := []struct {
		name      string
		timestamp string
		signature string
		wantErr   bool
	}{
		{name: "valid", timestamp: ts, signature: valid},
		{name: "missing timestamp", signature: valid, wantErr: true},
		{name: "missing signature", timestamp: ts, wantErr: true},
		{name: "non-numeric timestamp", timestamp: "abc", signature: valid, wantErr: true},
		{name: "stale timestamp", timestamp: strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10), signature: valid, wantErr: true},
		{name: "future timestamp", timestamp: strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10), signature: valid, wantErr: true},
		{name: "tampered signature", timestamp: ts, signature: valid + "0", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := httpctrl.VerifySignature("secret", tc.timestamp, tc.signature, body, now)
			if tc.wantErr {
				gt.Value(t, err).NotNil()
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

func TestAPIToken(t *testing.T) {
	srv := newServer(t, &stubEmbedder{vec: []float32{1, 0}}, httpctrl.WithAPIToken("op-token"))

	rec := send(t, srv, http.MethodGet, "/api/agents/agent-1/rules", nil, nil)
	gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)

	rec = send(t, srv, http.MethodGet, "/api/agents/agent-1/rules", nil, http.Header{"Authorization": {"Bearer wrong"}})
	gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)

	rec = send(t, srv, http.MethodGet, "/api/agents/agent-1/rules", nil, http.Header{"Authorization": {"Bearer op-token"}})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.String(t, rec.Body.String()).Contains(`"rules":[]`)

	rec = send(t, srv, http.MethodGet, "/health", nil, nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
}

func TestRuleAPI(t *testing.T) {
	srv := newServer(t, &stubEmbedder{vec: []float32{1, 0}})

	created := send(t, srv, http.MethodPost, "/api/agents/agent-1/rules", map[string]any{
		"name":             "Billing spike",
		"monitored_topics": []string{"billing"},
		"action_config": map[string]any{
			"type":  "slack",
			"slack": map[string]any{"channel_name": "#alerts"},
		},
	}, nil)
	gt.Value(t, created.Code).Equal(http.StatusCreated)
	rule := decode[model.SemanticMatchAction](t, created)
	gt.Number(t, rule.MatchThreshold).Equal(model.DefaultMatchThreshold)
	gt.Number(t, rule.CooldownMinutes).Equal(model.DefaultCooldownMinutes)
	gt.Bool(t, rule.IsActive).True()

	t.Run("invalid rule is rejected", func(t *testing.T) {
		rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/rules", map[string]any{
			"name":            "too eager",
			"match_threshold": 1,
			"action_config":   map[string]any{"type": "slack", "slack": map[string]any{"channel_name": "#alerts"}},
		}, nil)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)

		rec = send(t, srv, http.MethodPost, "/api/agents/agent-1/rules", map[string]any{
			"name":          "no channel",
			"action_config": map[string]any{"type": "webhook"},
		}, nil)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("list", func(t *testing.T) {
		rec := send(t, srv, http.MethodGet, "/api/agents/agent-1/rules", nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		rules := decode[struct {
			Rules []*model.SemanticMatchAction `json:"rules"`
		}](t, rec).Rules
		gt.Array(t, rules).Length(1).Required()
		gt.Value(t, rules[0].ID).Equal(rule.ID)
	})

	t.Run("update keeps unspecified fields", func(t *testing.T) {
		rec := send(t, srv, http.MethodPut, "/api/rules/"+string(rule.ID), map[string]any{
			"match_threshold": 5,
		}, nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		updated := decode[model.SemanticMatchAction](t, rec)
		gt.Number(t, updated.MatchThreshold).Equal(5)
		gt.Value(t, updated.Name).Equal("Billing spike")
	})

	t.Run("deactivate", func(t *testing.T) {
		rec := send(t, srv, http.MethodPost, "/api/rules/"+string(rule.ID)+"/active", map[string]any{"is_active": false}, nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Bool(t, decode[model.SemanticMatchAction](t, rec).IsActive).False()
	})

	t.Run("alerts", func(t *testing.T) {
		rec := send(t, srv, http.MethodGet, "/api/rules/"+string(rule.ID)+"/alerts?limit=10", nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.String(t, rec.Body.String()).Contains(`"alerts":[]`)

		rec = send(t, srv, http.MethodGet, "/api/rules/"+string(rule.ID)+"/alerts?limit=zero", nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("delete", func(t *testing.T) {
		rec := send(t, srv, http.MethodDelete, "/api/rules/"+string(rule.ID), nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusNoContent)

		rec = send(t, srv, http.MethodGet, "/api/rules/"+string(rule.ID), nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)

		rec = send(t, srv, http.MethodGet, "/api/rules/"+string(rule.ID)+"/alerts", nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})
}

func TestAgentConfigAPI(t *testing.T) {
	srv := newServer(t, &stubEmbedder{vec: []float32{1, 0}})

	rec := send(t, srv, http.MethodGet, "/api/agents/agent-1/config", nil, nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	cfg := decode[model.AgentConfig](t, rec)
	gt.Value(t, cfg.AgentID).Equal(model.AgentID("agent-1"))
	gt.Value(t, cfg.SemanticMemory).Equal(model.DefaultSemanticMemoryConfig())

	rec = send(t, srv, http.MethodPut, "/api/agents/agent-1/config", map[string]any{
		"name": "Front Desk",
		"semantic_memory": map[string]any{
			"enabled":              true,
			"similarity_threshold": 1.5,
			"max_results":          3,
		},
	}, nil)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)

	rec = send(t, srv, http.MethodPut, "/api/agents/agent-1/config", map[string]any{
		"name": "Front Desk",
		"semantic_memory": map[string]any{
			"enabled":              false,
			"similarity_threshold": 0.8,
			"max_results":          5,
		},
	}, nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	rec = send(t, srv, http.MethodGet, "/api/agents/agent-1/config", nil, nil)
	cfg = decode[model.AgentConfig](t, rec)
	gt.Value(t, cfg.Name).Equal("Front Desk")
	gt.Bool(t, cfg.SemanticMemory.Enabled).False()
	gt.Number(t, cfg.SemanticMemory.MaxResults).Equal(5)
}

func TestMemoryAPI(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	srv := newServer(t, embedder)

	for _, contact := range []string{"c-1", "c-2"} {
		rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/conversations", map[string]any{
			"contact_id": contact,
			"summary":    "shipping delay for " + contact,
		}, nil)
		gt.Value(t, rec.Code).Equal(http.StatusAccepted)
		waitAsync(t)
	}

	t.Run("search", func(t *testing.T) {
		rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/memories/search", map[string]any{
			"query":              "shipping",
			"exclude_contact_id": "c-1",
		}, nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		results := decode[struct {
			Results []*model.MemorySearchResult `json:"results"`
		}](t, rec).Results
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].Memory.ContactID).Equal(model.ContactID("c-2"))
	})

	t.Run("search without query", func(t *testing.T) {
		rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/memories/search", map[string]any{"query": " "}, nil)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("search with embedding outage", func(t *testing.T) {
		embedder.mu.Lock()
		embedder.err = errors.New("provider down")
		embedder.mu.Unlock()
		defer func() {
			embedder.mu.Lock()
			embedder.err = nil
			embedder.mu.Unlock()
		}()

		rec := send(t, srv, http.MethodPost, "/api/agents/agent-1/memories/search", map[string]any{"query": "shipping"}, nil)
		gt.Value(t, rec.Code).Equal(http.StatusServiceUnavailable)
	})

	t.Run("delete one", func(t *testing.T) {
		id := string(model.NewMemoryID("agent-1", "c-1"))
		rec := send(t, srv, http.MethodDelete, "/api/memories/"+id, nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusNoContent)

		rec = send(t, srv, http.MethodGet, "/api/memories/"+id, nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)

		rec = send(t, srv, http.MethodDelete, "/api/memories/"+id, nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})

	t.Run("delete all", func(t *testing.T) {
		rec := send(t, srv, http.MethodDelete, "/api/agents/agent-1/memories", nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Number(t, decode[map[string]int](t, rec)["deleted"]).Equal(1)

		rec = send(t, srv, http.MethodGet, "/api/agents/agent-1/memories", nil, nil)
		gt.String(t, rec.Body.String()).Contains(`"memories":[]`)
	})

	t.Run("similar for unknown memory", func(t *testing.T) {
		rec := send(t, srv, http.MethodGet, "/api/memories/missing/similar", nil, nil)
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})
}
