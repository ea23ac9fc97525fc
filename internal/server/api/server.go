// Package api exposes the identity service over HTTP/JSON.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/nrana15/clio/internal/logging"
	"github.com/nrana15/clio/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address  string
	identity *services.IdentityService
	logger   logging.Logger
}

func NewServer(address string, l logging.Logger, identity *services.IdentityService) *Server {
	return &Server{
		address:  address,
		identity: identity,
		logger:   l.With("module", "http_server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
