package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server serves the router until its context is cancelled. It satisfies
// suture.Service.
type Server struct {
	address  string
	handler  http.Handler
	logger   logging.Logger
	listener net.Listener
}

func NewServer(address string, h http.Handler, l logging.Logger) *Server {
	return &Server{address: address, handler: h, logger: l.With("module", "http_server")}
}

// Listen binds the address ahead of Serve, so a taken port is reported to
// the caller instead of the supervisor.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.address, err)
	}
	s.listener = l
	return nil
}

// Serve uses the listener opened by Listen, or binds the address itself on
// a restart. A failed bind terminates the supervisor tree.
func (s *Server) Serve(ctx context.Context) error {

	listen := s.listener
	s.listener = nil
	if listen == nil {
		if err := s.Listen(); err != nil {
			return fmt.Errorf("%w: %v", suture.ErrTerminateSupervisorTree, err)
		}
		listen, s.listener = s.listener, nil
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func (s *Server) String() string { return "http server " + s.address }
