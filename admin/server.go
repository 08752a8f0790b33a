// Package admin serves the read-only HTTP interface of the index service:
// index definitions and sizes, the update checkpoint, index export and
// Prometheus metrics.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/repoindex/tlog"
	"go.uber.org/zap"
)

const gracefulShutdownTimeout = 5 * time.Second

// Server serves the admin interface
type Server struct {
	listener net.Listener
	handler  http.Handler
}

// NewServer creates a server for the indexes of a provider
func NewServer(listener net.Listener, config Config) *Server {
	return &Server{
		listener: listener,
		handler:  newHandler(config),
	}
}

// ListenAddr returns the local address of the server
func (s *Server) ListenAddr() net.Addr {
	return s.listener.Addr()
}

// Run serves requests until the context is closed, then lets the running
// requests finish for up to gracefulShutdownTimeout
func (s *Server) Run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		ctx = tlog.With(ctx, zap.Stringer("httpServer", s.listener.Addr()))
		reqCtx, reqCancel := context.WithCancel(context.WithoutCancel(ctx))
		logger := tlog.Get(ctx)

		server := http.Server{
			Handler:           s.handler,
			ErrorLog:          must.OK1(zap.NewStdLogAt(logger, zap.WarnLevel)),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return reqCtx },
			ConnContext: func(ctx context.Context, conn net.Conn) context.Context {
				return tlog.With(ctx, zap.Stringer("remoteAddr", conn.RemoteAddr()))
			},
		}

		spawn("serve", parallel.Fail, func(ctx context.Context) error {
			logger.Info("Serving admin requests")
			err := server.Serve(s.listener)
			// ErrServerClosed after a shutdown is the context error
			if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		})

		spawn("shutdown", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(reqCtx, gracefulShutdownTimeout)
			defer cancel()
			defer reqCancel()
			defer server.Close()

			if err := server.Shutdown(shutdownCtx); err != nil && shutdownCtx.Err() != nil {
				logger.Info("Shutdown canceled", zap.Error(err))
				return err
			}
			logger.Info("Shutdown complete")
			return ctx.Err()
		})

		return nil
	})
}
