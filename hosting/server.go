// Copyright (c) Microsoft. All rights reserved.

// Package hosting exposes an agent or workflow as a hosted agent HTTP
// process.
//
//	server := hosting.FromAgent(agent)
//	if err := server.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Routes:
//
//	GET  /liveness    process is up
//	GET  /readiness   runnable can be built
//	POST /responses   run the agent (Responses wire format)
//	POST /runs        alias of /responses
//	GET  /metrics     Prometheus metrics
package hosting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// EnvPort selects the listening port when no address is configured.
const (
	EnvPort     = "DEFAULT_AD_PORT"
	DefaultPort = "8088"
)

const (
	shutdownTimeout = 30 * time.Second
	maxBodyBytes    = 4 << 20
)

// Runner is a blocking process entry point.
type Runner interface {
	Run(ctx context.Context) error
}

// Server hosts one runnable. Create it with [FromAgent] or [FromWorkflow].
type Server struct {
	resolve  func() (af.Runnable, error)
	addr     string
	logger   *slog.Logger
	threads  ThreadRepository
	registry *prometheus.Registry
	metrics  *metrics
	handler  http.Handler
	turns    conversationLocks

	mu       sync.Mutex
	listener net.Listener
}

var _ Runner = (*Server)(nil)

// Option configures a [Server].
type Option func(*Server)

// WithAddr sets the listen address. Defaults to ":" + $DEFAULT_AD_PORT, or
// ":8088".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithThreadRepository sets where conversations are kept.
func WithThreadRepository(r ThreadRepository) Option {
	return func(s *Server) { s.threads = r }
}

// WithRegistry sets the Prometheus registry served on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// FromAgent hosts a single runnable, usually an [agentframework.Agent].
func FromAgent(r af.Runnable, opts ...Option) *Server {
	return newServer(func() (af.Runnable, error) { return r, nil }, opts...)
}

// FromWorkflow hosts a runnable built on demand by build, e.g.
// (*workflow.ConcurrentBuilder).Build. build is called once at startup and
// then for every request.
func FromWorkflow[W af.Runnable](build func() (W, error), opts ...Option) *Server {
	return newServer(func() (af.Runnable, error) {
		w, err := build()
		if err != nil {
			return nil, err
		}
		return w, nil
	}, opts...)
}

func newServer(resolve func() (af.Runnable, error), opts ...Option) *Server {
	s := &Server{resolve: resolve}
	for _, opt := range opts {
		opt(s)
	}
	if s.addr == "" {
		port := os.Getenv(EnvPort)
		if port == "" {
			port = DefaultPort
		}
		s.addr = ":" + port
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.threads == nil {
		s.threads = NewInMemoryThreadRepository()
	}
	if s.registry == nil {
		s.registry = newRegistry()
	}
	s.metrics = newMetrics(s.registry)
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the bound address once Run is listening, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /liveness", s.handleLiveness)
	mux.HandleFunc("GET /readiness", s.handleReadiness)
	mux.HandleFunc("POST /responses", s.metrics.instrument("/responses", s.handleResponses))
	mux.HandleFunc("POST /runs", s.metrics.instrument("/runs", s.handleResponses))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return otelhttp.NewHandler(mux, "hosted-agent")
}

// Run builds the runnable once to fail fast, then serves until ctx is
// cancelled and shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	r, err := s.resolve()
	if err != nil {
		return fmt.Errorf("%w: build runnable: %w", af.ErrInitialization, err)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.InfoContext(ctx, "hosted agent listening", "addr", ln.Addr().String(), "agent", r.Name())

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down hosted agent")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.resolve(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateResponseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if req.Stream {
		s.badRequest(w, r, "streaming is not supported")
		return
	}
	msgs, err := inputMessages(req.Input)
	if err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	convID, err := conversationID(req.Conversation)
	if err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if convID == "" {
		convID = newID("conv_")
	}

	runnable, err := s.resolve()
	if err != nil {
		s.logger.ErrorContext(ctx, "build runnable failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorEnvelope{Error: ErrorBody{
			Code: "unavailable", Type: "server_error", Message: err.Error(),
		}})
		return
	}

	session, err := s.threads.Get(ctx, convID)
	if err != nil {
		s.logger.ErrorContext(ctx, "load conversation failed", "conversation", convID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: ErrorBody{
			Code: "server_error", Type: "server_error", Message: "could not load conversation",
		}})
		return
	}

	// One turn per conversation at a time: a second request waits here so it
	// sees the first one's history, including any resolved approvals.
	release, err := s.turns.acquire(ctx, convID)
	if err != nil {
		s.logger.WarnContext(ctx, "request canceled waiting for conversation", "conversation", convID, "error", err)
		return
	}
	defer release()

	resp := newResponse(runnable.Name(), convID, req.Metadata)
	s.logger.InfoContext(ctx, "run started",
		"response_id", resp.ID,
		"conversation", convID,
		"agent", runnable.Name(),
		"input_messages", len(msgs),
	)

	result, err := runnable.Run(ctx, msgs, af.WithSession(session))
	if err != nil {
		s.logger.ErrorContext(ctx, "run failed", "response_id", resp.ID, "error", err)
		resp.Status = "failed"
		resp.Error = &ErrorBody{Code: "server_error", Message: err.Error()}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	resp.Status = "completed"
	resp.Output = outputItems(result.Messages, runnable.Name())
	resp.Usage = &result.Usage
	s.logger.InfoContext(ctx, "run completed",
		"response_id", resp.ID,
		"output_items", len(resp.Output),
		"pending_approvals", len(result.ApprovalRequests()),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	s.logger.WarnContext(r.Context(), "bad request", "path", r.URL.Path, "error", msg)
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: ErrorBody{
		Code: "invalid_request", Type: "invalid_request_error", Message: msg,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
