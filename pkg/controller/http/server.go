package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/magpipe/recurra/pkg/usecase"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

type Server struct {
	router       *chi.Mux
	uc           *usecase.UseCases
	apiToken     string
	ingestSecret string
	clock        func() time.Time
}

type Options func(*Server)

// WithAPIToken requires a bearer token on every operator endpoint
func WithAPIToken(token string) Options {
	return func(s *Server) {
		s.apiToken = token
	}
}

// WithIngestSecret requires conversation events to carry an HMAC signature
// computed with secret
func WithIngestSecret(secret string) Options {
	return func(s *Server) {
		s.ingestSecret = secret
	}
}

func WithClock(clock func() time.Time) Options {
	return func(s *Server) {
		s.clock = clock
	}
}

func New(uc *usecase.UseCases, opts ...Options) (*Server, error) {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	// Conversation ingestion from the call pipeline
	r.Group(func(r chi.Router) {
		if s.ingestSecret != "" {
			r.Use(signatureMiddleware(s.ingestSecret, s.clock))
		}
		r.Post("/api/agents/{agentID}/conversations", s.postConversation)
	})

	// Operator API
	r.Group(func(r chi.Router) {
		if s.apiToken != "" {
			r.Use(tokenMiddleware(s.apiToken))
		}

		r.Route("/api/agents/{agentID}", func(r chi.Router) {
			r.Get("/memories", s.listMemories)
			r.Delete("/memories", s.deleteAllMemories)
			r.Post("/memories/search", s.searchMemories)

			r.Get("/config", s.getAgentConfig)
			r.Put("/config", s.putAgentConfig)

			r.Get("/rules", s.listRules)
			r.Post("/rules", s.createRule)
		})

		r.Route("/api/memories/{memoryID}", func(r chi.Router) {
			r.Get("/", s.getMemory)
			r.Delete("/", s.deleteMemory)
			r.Get("/similar", s.similarMemories)
		})

		r.Route("/api/rules/{ruleID}", func(r chi.Router) {
			r.Get("/", s.getRule)
			r.Put("/", s.updateRule)
			r.Delete("/", s.deleteRule)
			r.Post("/active", s.setRuleActive)
			r.Get("/alerts", s.listAlerts)
		})
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
