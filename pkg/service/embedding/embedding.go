package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

const (
	DefaultDimension = 768
	DefaultCacheTTL  = 10 * time.Minute
	DefaultTimeout   = 15 * time.Second

	// bytes of vectors kept in the cache
	defaultCacheSize = 64 << 20
)

// Service computes text embeddings through an LLM provider. Identical texts
// within the cache TTL are served from memory.
type Service struct {
	llm       gollem.LLMClient
	dimension int
	timeout   time.Duration
	cacheTTL  time.Duration
	cache     *ristretto.Cache
}

var _ interfaces.Embedder = &Service{}

type Option func(*Service)

// WithDimension sets the requested vector dimension
func WithDimension(dim int) Option {
	return func(s *Service) {
		s.dimension = dim
	}
}

// WithCacheTTL sets how long a computed vector is reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

// WithTimeout bounds a single provider call
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func New(llm gollem.LLMClient, opts ...Option) (*Service, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required for embedding")
	}

	s := &Service{
		llm:       llm,
		dimension: DefaultDimension,
		timeout:   DefaultTimeout,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", s.dimension))
	}

	if s.cacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e5,
			MaxCost:     defaultCacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create embedding cache")
		}
		s.cache = cache
	}

	return s, nil
}

// Dimension returns the configured vector dimension
func (s *Service) Dimension() int {
	return s.dimension
}

func (s *Service) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return strconv.Itoa(s.dimension) + ":" + hex.EncodeToString(sum[:])
}

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, goerr.New("embedding input is empty")
	}

	key := s.cacheKey(text)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if vec, ok := v.([]float32); ok {
				return append([]float32{}, vec...), nil
			}
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	embeddings, err := s.llm.GenerateEmbedding(ctx, s.dimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding", goerr.V("dimension", s.dimension))
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.New("embedding generation returned empty result")
	}

	vec := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vec[i] = float32(v)
	}

	if s.cache != nil {
		if !s.cache.SetWithTTL(key, append([]float32{}, vec...), int64(len(vec)*4), s.cacheTTL) {
			logging.From(ctx).Debug("embedding cache rejected entry", "dimension", len(vec))
		}
	}
	return vec, nil
}

// Close releases the cache
func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// waitCache blocks until buffered cache writes are applied
func (s *Service) waitCache() {
	if s.cache != nil {
		s.cache.Wait()
	}
}
