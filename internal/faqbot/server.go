package faqbot

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
)

// Server wraps the HTTP server with graceful shutdown and resource cleanup.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	closers         []func(ctx context.Context)
}

// NewServer creates a Server listening on addr with the given engine.
func NewServer(addr string, engine *gin.Engine, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// OnShutdown registers a cleanup function invoked after the HTTP server stops.
// Functions run in registration order.
func (s *Server) OnShutdown(fn func(ctx context.Context)) {
	s.closers = append(s.closers, fn)
}

// Run starts the server and blocks until a termination signal arrives.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Infow("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorw("HTTP server shutdown failed", "error", err.Error())
	}
	for _, closer := range s.closers {
		closer(ctx)
	}

	logger.Info("server stopped")
	return nil
}
