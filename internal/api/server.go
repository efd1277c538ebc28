package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/config"
	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/metrics"
	"github.com/JakeFAU/movie-frontier/internal/policy/ratelimit"
)

const (
	enqueueTimeout = 5 * time.Second
	// maxBodyBytes caps outcome and seed request bodies.
	maxBodyBytes = 1 << 20
)

// EntityReader reads lifecycle rows.
type EntityReader interface {
	Get(ctx context.Context, kind frontier.Kind, id int64) (frontier.Entity, error)
}

// Enqueuer accepts items for the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, item frontier.Item) error
}

// Server wires HTTP handlers to the dispatcher and entity store.
type Server struct {
	router   chi.Router
	entities EntityReader
	enqueuer Enqueuer
	ready    func(context.Context) error
	logger   *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithReadiness sets the check behind /readyz.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	entities EntityReader,
	enqueuer Enqueuer,
	cfg config.Config,
	recorder *metrics.Recorder,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		entities: entities,
		enqueuer: enqueuer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(recorder.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", recorder.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequestSize(maxBodyBytes))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		if cfg.Server.RateLimitRPS > 0 {
			limiter := ratelimit.New(ratelimit.Config{
				DefaultRPS:   cfg.Server.RateLimitRPS,
				DefaultBurst: cfg.Server.RateLimitBurst,
			})
			r.Use(rateLimitMiddleware(limiter, recorder))
		}
		r.Post("/outcomes", s.submitOutcome)
		r.Post("/seeds", s.submitSeeds)
		r.Get("/entities/{kind}/{id}", s.getEntity)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) submitOutcome(w http.ResponseWriter, r *http.Request) {
	var item frontier.Item
	if !decodeBody(w, r, &item) {
		return
	}
	if err := item.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.enqueue(r.Context(), item); err != nil {
		writeEnqueueError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"capability": string(item.Capability),
	})
}

func (s *Server) submitSeeds(w http.ResponseWriter, r *http.Request) {
	var batch frontier.SeedBatch
	if !decodeBody(w, r, &batch) {
		return
	}
	if len(batch.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids required")
		return
	}
	item := frontier.SeedItem(batch.IDs...)
	if err := item.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.enqueue(r.Context(), item); err != nil {
		writeEnqueueError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "ids": len(batch.IDs)})
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := frontier.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	entity, err := s.entities.Get(r.Context(), kind, id)
	if errors.Is(err, frontier.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	if err != nil {
		s.logger.Error("get entity failed", zap.String("kind", string(kind)), zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read entity")
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) enqueue(ctx context.Context, item frontier.Item) error {
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	if err := s.enqueuer.Enqueue(queueCtx, item); err != nil {
		return fmt.Errorf("enqueue item: %w", err)
	}
	return nil
}

// decodeBody reads a JSON body into dst, writing the error response itself
// when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeEnqueueError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusRequestTimeout
	}
	writeError(w, status, err.Error())
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", requestID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.String("request_id", requestID(r.Context())),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware keys buckets by API key, falling back to the client
// host.
func rateLimitMiddleware(limiter *ratelimit.Limiter, recorder *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.RemoteAddr
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					key = host
				}
			}
			if !limiter.Allow(key) {
				recorder.ObserveRateLimited()
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
