// Package api exposes the bot's HTTP surface: the Telegram webhook
// receiver, a health probe, and the persistence self-test.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rentagg/feedbot/internal/models"
)

// Default server configuration constants
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultDispatchTimeout bounds the handling of one update, covering
	// persistence retries with room to spare.
	DefaultDispatchTimeout = 30 * time.Second

	secretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// Dispatcher handles decoded inbound events. Implemented by flow.Engine.
type Dispatcher interface {
	HandleInbound(ctx context.Context, inb models.Inbound)
	SelfTest(ctx context.Context) bool
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr            string
	WebhookSecret   string
	ShutdownTimeout time.Duration
	DispatchTimeout time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithWebhookSecret sets the shared secret checked on webhook requests.
// Empty disables the check.
func WithWebhookSecret(secret string) Option {
	return func(o *Opts) { o.WebhookSecret = secret }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ShutdownTimeout = d }
}

// WithDispatchTimeout bounds the background handling of one update.
func WithDispatchTimeout(d time.Duration) Option {
	return func(o *Opts) { o.DispatchTimeout = d }
}

// Server is the HTTP server wrapping the webhook receiver.
type Server struct {
	opts       Opts
	dispatcher Dispatcher
	srv        *http.Server

	// userLocks serializes dispatch per user so two updates from the same
	// chat never interleave inside the engine; different users proceed in
	// parallel.
	userLocks sync.Map // int64 -> *sync.Mutex

	wg sync.WaitGroup
}

// NewServer creates the API server around the given dispatcher.
func NewServer(dispatcher Dispatcher, opts ...Option) *Server {
	cfg := Opts{
		Addr:            DefaultAddr,
		ShutdownTimeout: DefaultShutdownTimeout,
		DispatchTimeout: DefaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Creating API server", "addr", cfg.Addr, "secretSet", cfg.WebhookSecret != "")

	s := &Server{opts: cfg, dispatcher: dispatcher}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)
	r.Post("/selftest", s.handleSelfTest)
	return r
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run starts serving and blocks until the listener fails or Shutdown is
// called. http.ErrServerClosed is swallowed.
func (s *Server) Run() error {
	slog.Info("API server listening", "addr", s.opts.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight HTTP requests and waits for background update
// dispatches to finish, bounded by the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down")
	sctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(sctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-sctx.Done():
		slog.Warn("API server shutdown abandoned pending dispatches")
	}
	return err
}

// dispatch runs one inbound event in the background, serialized per user.
func (s *Server) dispatch(inb models.Inbound) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		v, _ := s.userLocks.LoadOrStore(inb.From.ID, &sync.Mutex{})
		mu := v.(*sync.Mutex)
		mu.Lock()
		defer mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.DispatchTimeout)
		defer cancel()
		s.dispatcher.HandleInbound(ctx, inb)
	}()
}
