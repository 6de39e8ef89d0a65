package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

const shutdownGrace = 5 * time.Second

// LoopbackServer owns the bound listener and HTTP server for one authorization attempt.
type LoopbackServer struct {
	listener net.Listener
	server   *http.Server
	callback *CallbackHandler
	logger   *log.Logger

	closeOnce sync.Once
	closeErr  error
}

// Listen binds addr and prepares a server for callback.
//
// Binding happens here, before any browser is pointed at the redirect URI, so a busy port is
// reported up front.
func Listen(addr string, callback *CallbackHandler, logger *log.Logger) (*LoopbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: bind %s: %v", shared.ErrAuthFailed, addr, err)
	}

	router := NewBasicRouter()
	router.Use(Recoverer(logger), RequestLogger(logger), NoStore)
	router.Handler(callback)

	return &LoopbackServer{
		listener: ln,
		callback: callback,
		logger:   logger,
		server: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
		},
	}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *LoopbackServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Await serves until the callback delivers a result, timeout elapses, or ctx is done.
//
// The listener is released before Await returns on every path.
func (s *LoopbackServer) Await(ctx context.Context, timeout time.Duration) (models.Credential, error) {
	defer s.Close()

	serveErr := make(chan error, 1)
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.callback.Result():
		return result.Credential, result.Err
	case err := <-serveErr:
		return models.Credential{}, fmt.Errorf("%w: callback server: %v", shared.ErrAuthFailed, err)
	case <-timer.C:
		return models.Credential{}, fmt.Errorf("%w: no authorization received within %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return models.Credential{}, fmt.Errorf("%w: %v", shared.ErrTimeout, ctx.Err())
	}
}

// Close shuts the server down gracefully, letting an in-flight finalize response complete.
func (s *LoopbackServer) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("callback server shutdown", "error", err)
			s.closeErr = s.server.Close()
		}
		// Shutdown only closes listeners Serve has adopted.
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
	})
	return s.closeErr
}
