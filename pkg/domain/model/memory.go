package model

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/types"
)

// AgentID identifies the voice agent that owns memories, rules and config
type AgentID string

// ContactID identifies a caller. Together with AgentID it is unique per memory.
type ContactID string

// MemoryID is a stable identifier derived from (AgentID, ContactID)
type MemoryID string

const (
	// MaxCallHistory is the number of call records retained per memory
	MaxCallHistory = 20

	// MaxEmbeddingInputChars bounds the text sent to the embedding model
	MaxEmbeddingInputChars = 8000
)

var memoryIDNamespace = uuid.MustParse("6f1d2c9e-4b7a-5e3f-9c2d-8a1b0e7f4d35")

// NewMemoryID returns the deterministic MemoryID for an agent/contact pair.
// Re-creating a deleted memory for the same pair yields the same ID.
func NewMemoryID(agentID AgentID, contactID ContactID) MemoryID {
	name := string(agentID) + "\x00" + string(contactID)
	return MemoryID(uuid.NewSHA1(memoryIDNamespace, []byte(name)).String())
}

// CallRecord is a condensed entry of a past conversation
type CallRecord struct {
	CallID          string          `json:"call_id,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	DurationSeconds int             `json:"duration_seconds"`
	Summary         string          `json:"summary,omitempty"`
	Sentiment       string          `json:"sentiment,omitempty"`
	Direction       types.Direction `json:"direction"`
}

// Memory is the consolidated record of everything an agent knows about one
// contact. It is created by the first completed conversation and merged on
// every subsequent one.
type Memory struct {
	ID                 MemoryID          `json:"id"`
	AgentID            AgentID           `json:"agent_id"`
	ContactID          ContactID         `json:"contact_id"`
	ContactName        string            `json:"contact_name,omitempty"`
	ContactPhone       string            `json:"contact_phone,omitempty"`
	Summary            string            `json:"summary"`
	KeyTopics          []string          `json:"key_topics"`
	Preferences        map[string]string `json:"preferences,omitempty"`
	CallHistory        []CallRecord      `json:"call_history,omitempty"`
	InteractionCount   int64             `json:"interaction_count"`
	Direction          types.Direction   `json:"direction"`
	Embedding          []float32         `json:"-"`
	SemanticMatchCount int64             `json:"semantic_match_count"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HasEmbedding reports whether the memory currently carries a vector
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// Clone returns a deep copy
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	c := *m
	c.KeyTopics = slices.Clone(m.KeyTopics)
	c.Preferences = maps.Clone(m.Preferences)
	c.CallHistory = slices.Clone(m.CallHistory)
	c.Embedding = slices.Clone(m.Embedding)
	return &c
}

// EmbeddingText is the input used to compute the memory's vector
func (m *Memory) EmbeddingText() string {
	text := m.Summary
	if len(m.KeyTopics) > 0 {
		text += " " + strings.Join(m.KeyTopics, ", ")
	}
	text = strings.TrimSpace(text)
	if len(text) > MaxEmbeddingInputChars {
		text = truncateUTF8(text, MaxEmbeddingInputChars)
	}
	return text
}

// LastCall returns the most recent call record, or nil
func (m *Memory) LastCall() *CallRecord {
	if len(m.CallHistory) == 0 {
		return nil
	}
	c := m.CallHistory[len(m.CallHistory)-1]
	return &c
}

// MemoryPatch carries the conversation outcome merged into a memory
type MemoryPatch struct {
	ContactName  string
	ContactPhone string
	Summary      string
	KeyTopics    []string
	Preferences  map[string]string
	Direction    types.Direction
	Call         *CallRecord
}

// Validate checks the patch before it is applied
func (p *MemoryPatch) Validate() error {
	if p.Direction != "" && !p.Direction.IsValid() {
		return goerr.Wrap(ErrInvalidMemory, "invalid direction", goerr.V("direction", p.Direction))
	}
	return nil
}

// NewMemory builds the initial record for an agent/contact pair. Direction
// records how the relationship started and is not changed by later patches.
func NewMemory(agentID AgentID, contactID ContactID, direction types.Direction, now time.Time) *Memory {
	if direction == "" {
		direction = types.DirectionInbound
	}
	return &Memory{
		ID:        NewMemoryID(agentID, contactID),
		AgentID:   agentID,
		ContactID: contactID,
		Direction: direction,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply merges the patch into the memory and reports whether a new embedding
// must be computed. A vector computed from older content is dropped.
func (m *Memory) Apply(p *MemoryPatch, now time.Time) bool {
	before := m.EmbeddingText()

	if p.ContactName != "" {
		m.ContactName = p.ContactName
	}
	if p.ContactPhone != "" {
		m.ContactPhone = p.ContactPhone
	}
	if s := strings.TrimSpace(p.Summary); s != "" {
		m.Summary = s
	}
	m.KeyTopics = MergeTopics(m.KeyTopics, p.KeyTopics)

	if len(p.Preferences) > 0 {
		if m.Preferences == nil {
			m.Preferences = make(map[string]string, len(p.Preferences))
		}
		maps.Copy(m.Preferences, p.Preferences)
	}
	if p.Call != nil {
		m.CallHistory = append(m.CallHistory, *p.Call)
		if over := len(m.CallHistory) - MaxCallHistory; over > 0 {
			m.CallHistory = slices.Clone(m.CallHistory[over:])
		}
	}
	m.InteractionCount++
	m.UpdatedAt = now

	if m.EmbeddingText() != before {
		m.Embedding = nil
	}
	return !m.HasEmbedding() && m.EmbeddingText() != ""
}

// DominantSentiment returns the most frequent sentiment across the call
// history, or "unknown" when no call carries one. Ties go to the most recent.
func (m *Memory) DominantSentiment() string {
	counts := map[string]int{}
	best, bestCount := "", 0
	for i := len(m.CallHistory) - 1; i >= 0; i-- {
		s := strings.ToLower(strings.TrimSpace(m.CallHistory[i].Sentiment))
		if s == "" {
			continue
		}
		counts[s]++
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	if best == "" {
		return "unknown"
	}
	return best
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
