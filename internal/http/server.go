// Package http exposes the record store and the derived metric engines as
// a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"obras/internal/cache"
	"obras/internal/core"
	applog "obras/internal/log"
	"obras/internal/middleware/ratelimit"
	"obras/internal/middleware/security"
	"obras/internal/middleware/trace"
	"obras/internal/store"
)

// ChangePublisher announces mutations to interested subscribers.
type ChangePublisher interface {
	PublishChange(ctx context.Context, collection, projectID string) error
}

// Options tunes server-side caching.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultOptions returns sensible cache defaults.
func DefaultOptions() Options {
	return Options{
		CacheSize: 128,
		CacheTTL:  30 * time.Second,
	}
}

type Server struct {
	http.Server

	store     store.Store
	publisher ChangePublisher

	summaryCache *cache.LRUCache[core.Summary]
	listCache    *cache.LRUCache[[]core.Expense]
	cacheManager *cache.Manager

	rateLimiter  *ratelimit.Limiter
	detector     *security.Detector
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. The publisher may be nil; mutations then go unannounced.
func NewServer(addr string, st store.Store, publisher ChangePublisher, opts Options) *Server {
	if opts.CacheSize <= 0 || opts.CacheTTL <= 0 {
		opts = DefaultOptions()
	}

	mux := http.NewServeMux()

	s := &Server{
		store:        st,
		publisher:    publisher,
		summaryCache: cache.NewLRUCache[core.Summary](opts.CacheSize, opts.CacheTTL),
		listCache:    cache.NewLRUCache[[]core.Expense](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     security.NewDetector(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.listCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("GET /api/projects/{id}/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/projects/{id}/expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/projects/{id}/expenses/{expenseID}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/projects/{id}/expenses/{expenseID}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/projects/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/projects/{id}/budget", s.handleGetBudget)
	mux.HandleFunc("PUT /api/projects/{id}/budget", s.handleSetBudget)
	mux.HandleFunc("DELETE /api/projects/{id}/budget", s.handleDeleteBudget)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)
	requestLogger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP)(handler)
	handler = headers.Middleware(handler)
	// The trace middleware assigns the request id; the log middlewares put
	// a logger carrying it into the context for the handlers.
	handler = applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = applog.Middleware(requestLogger)(handler)
	handler = tracer.Middleware(handler)
	handler = s.withSuspicionCheck(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}

	return s
}

// withSuspicionCheck rejects requests matching known attack patterns.
func (s *Server) withSuspicionCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request rejected",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r))
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// invalidateProject drops every cached view of one project and announces
// the change. Called after every successful mutation.
func (s *Server) invalidateProject(ctx context.Context, collection, projectID string) {
	s.summaryCache.DeletePrefix("summary:" + projectID)
	s.listCache.DeletePrefix("expenses:" + projectID)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, collection, projectID); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to publish change message",
			applog.FieldCollection, collection,
			applog.FieldProjectID, projectID,
			applog.FieldError, err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Ready once the store answers. A closed store reports ErrUnavailable.
	if _, err := s.store.ListProjects(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
