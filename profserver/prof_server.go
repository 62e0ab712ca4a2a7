/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package profserver provides an HTTP server unit that exposes pprof handlers under /debug/pprof/.
package profserver

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/acronis/go-quotakit/httpserver/middleware"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/service"
)

const readHeaderTimeout = 5 * time.Second

// ProfServer represents HTTP server for profiling.
type ProfServer struct {
	HTTPServer *http.Server
	Logger     log.FieldLogger

	listener net.Listener
	addr     atomic.String
	done     chan struct{}
}

var _ service.Unit = (*ProfServer)(nil)

// New creates a new profiling server. If listener is nil, a TCP listener on cfg.Address is created on Start.
func New(cfg *Config, logger log.FieldLogger, listener net.Listener) *ProfServer {
	logger = log.OrDisabled(logger)
	router := chi.NewRouter()
	router.Use(middleware.RequestID(), middleware.Logging(logger, middleware.LoggingOpts{}))
	router.Mount("/debug", chimiddleware.Profiler())

	return &ProfServer{
		HTTPServer: &http.Server{Addr: cfg.Address, Handler: router, ReadHeaderTimeout: readHeaderTimeout},
		Logger:     logger,
		listener:   listener,
		done:       make(chan struct{}),
	}
}

// Start serves requests until Stop is called. Supposed this method will be called in a separate goroutine.
func (s *ProfServer) Start(fatalError chan<- error) {
	defer close(s.done)

	logger := s.Logger.With(log.String("address", s.HTTPServer.Addr))
	logger.Info("starting profiling HTTP server...")

	if s.listener == nil {
		var err error
		if s.listener, err = net.Listen("tcp", s.HTTPServer.Addr); err != nil {
			logger.Error("profiling HTTP server error", log.Error(err))
			fatalError <- err
			return
		}
	}
	s.addr.Store(s.listener.Addr().String())

	if err := s.HTTPServer.Serve(s.listener); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("profiling HTTP server closed")
			return
		}
		logger.Error("profiling HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop closes the server. Profiling requests are not drained, so gracefully is ignored.
func (s *ProfServer) Stop(gracefully bool) error {
	s.Logger.Info("closing profiling HTTP server...")
	if err := s.HTTPServer.Close(); err != nil {
		s.Logger.Error("profiling HTTP server closing error", log.Error(err))
		return err
	}
	<-s.done
	return nil
}

// Addr returns the address the server listens on. It's empty until the server is started.
func (s *ProfServer) Addr() string {
	return s.addr.Load()
}
