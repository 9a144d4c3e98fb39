// Package server exposes the blog over HTTP: the home page, a health probe,
// and the middleware stack around them.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/middleware"
)

// PostSource is what the server needs from the store.
type PostSource interface {
	FetchPublishedPosts(ctx context.Context) ([]content.PostRow, error)
	Ping(ctx context.Context) error
}

// Server owns the http.Server and its lifecycle. Handlers share nothing but
// the PostSource, whose pool does its own locking.
type Server struct {
	config   *config.Config
	source   PostSource
	logger   logging.Logger
	errors   *errors.ErrorHandler
	tracer   trace.Tracer
	handler  http.Handler
	ready    chan struct{}
	listener net.Listener

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	isShutdown   bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Server.
type Option func(*Server)

// WithTracer enables a server span per request.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// New builds a server for cfg. Nothing listens until Start.
func New(cfg *config.Config, source PostSource, logger logging.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server: config cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("server: post source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("server: logger cannot be nil")
	}

	logger = logger.WithComponent("server")
	s := &Server{
		config: cfg,
		source: source,
		logger: logger,
		errors: errors.NewErrorHandler(logger),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	// the request logger wraps recovery so a recovered panic is still logged
	// as a failed request under its id
	chain := middleware.NewChain(
		middleware.RequestLogger(logger),
		middleware.Recovery(logger),
		middleware.Tracing(s.tracer),
		middleware.SecurityHeaders(),
	)
	s.handler = chain.Apply(s.routes())

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address once listening, the configured one before.
func (s *Server) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Start listens and serves until ctx is cancelled, then shuts down within
// the configured timeout. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.serverMutex.Lock()
	if s.isShutdown {
		s.serverMutex.Unlock()
		return fmt.Errorf("server: already shut down")
	}
	if s.listener != nil {
		s.serverMutex.Unlock()
		return fmt.Errorf("server: already started")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.serverMutex.Unlock()
		return fmt.Errorf("server: listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	server := s.httpServer
	s.serverMutex.Unlock()

	close(s.ready)
	s.logger.Info(ctx, "Server listening", "addr", ln.Addr().String(), "environment", s.config.Server.Environment)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server: %w", err)
			return
		}
		errChan <- nil
	}()

	select {
	case <-ctx.Done():
		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
// It is safe to call more than once and from several goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.serverMutex.Lock()
		s.isShutdown = true
		server := s.httpServer
		s.serverMutex.Unlock()

		s.logger.Info(ctx, "Shutting down server")
		if err := server.Shutdown(ctx); err != nil {
			s.shutdownErr = fmt.Errorf("server: shutdown: %w", err)
		}
	})
	return s.shutdownErr
}
