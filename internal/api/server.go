// Package api serves the answer loop over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"askace/internal/logging"
	"askace/internal/metrics"
	"askace/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxRequestBytes = 1 << 20

	// metrics label for requests no route matched
	unmatchedEndpoint = "unmatched"
)

// Answerer is the loop the API exposes. *ace.Service satisfies it.
type Answerer interface {
	Answer(ctx context.Context, req types.QueryRequest) (*types.AnswerResponse, error)
	ListHeuristics(ctx context.Context, tag string) ([]types.HeuristicItem, error)
}

// Option configures the router.
type Option func(*handlers)

// WithAnswerTimeout bounds each POST /answer run. Zero means no deadline
// beyond the client's connection.
func WithAnswerTimeout(d time.Duration) Option {
	return func(h *handlers) { h.answerTimeout = d }
}

// NewRouter builds the HTTP routes.
func NewRouter(svc Answerer, opts ...Option) http.Handler {
	h := &handlers{svc: svc}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Get("/health", h.health)
	r.Post("/answer", h.answer)
	r.Get("/ace/playbook", h.playbook)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Server owns the listener lifecycle.
type Server struct {
	srv *http.Server
}

// NewServer creates a server for svc on addr.
func NewServer(addr string, svc Answerer, opts ...Option) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(svc, opts...),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Get(logging.CategoryAPI).Info("HTTP API listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Get(logging.CategoryAPI).Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

type handlers struct {
	svc           Answerer
	answerTimeout time.Duration
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) answer(w http.ResponseWriter, r *http.Request) {
	req := types.NewQueryRequest("")
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	ctx := r.Context()
	if h.answerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.answerTimeout)
		defer cancel()
	}
	answer, err := h.svc.Answer(ctx, req)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			logging.Get(logging.CategoryAPI).Error("Answer failed: %v", err)
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *handlers) playbook(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListHeuristics(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("List playbook failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []types.HeuristicItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// StatusFor maps a loop error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrEvidenceExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := unmatchedEndpoint
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.RequestCount.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())
		logging.Get(logging.CategoryAPI).Debug("%s %s -> %d (%v) [%s]",
			r.Method, endpoint, status, elapsed, middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
