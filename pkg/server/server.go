package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/metrics"
)

// Config configures the HTTP server's listener and timeouts.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
}

// Server serves the five-operation backend contract over REST. It supports
// graceful shutdown driven by context cancellation.
type Server struct {
	httpServer   *http.Server
	dispatcher   *Dispatcher
	config       Config
	shutdownOnce sync.Once
}

// NewServer validates that meta and data together cover all five
// operations, then constructs a Server ready to Start. Capability
// validation failure is returned as-is (wrapping backend.ErrMissingCapability);
// callers should treat it as fatal and exit with a distinct status code. m
// may be nil, in which case request metrics are simply not recorded.
func NewServer(cfg Config, meta, data backend.Backend, m *metrics.Metrics) (*Server, error) {
	if err := backend.ValidateCapabilities(meta, data); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	disp := NewDispatcher(meta, data)
	router := newRouter(disp, m)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{httpServer: httpServer, dispatcher: disp, config: cfg}, nil
}

// Start listens and blocks until ctx is cancelled or the listener fails.
// On cancellation it initiates graceful shutdown and returns Stop's result
// (nil unless shutdown itself fails).
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("server shutdown initiated")
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			logger.Error("server shutdown error", "error", err)
			return
		}
		logger.Info("server stopped gracefully")
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}
