/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/atomic"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/service"
)

// HTTPServer is the service.Unit serving the application API.
type HTTPServer struct {
	HTTPServer      *http.Server
	Logger          log.FieldLogger
	ShutdownTimeout time.Duration

	listener net.Listener
	port     atomic.Int32
	started  atomic.Bool
	done     chan struct{}
}

var _ service.Unit = (*HTTPServer)(nil)

// New creates a new HTTPServer that serves the handler (usually a router made by NewRouter).
// If listener is nil, a TCP listener on cfg.Address is created on Start.
func New(cfg *Config, logger log.FieldLogger, handler http.Handler, listener net.Listener) *HTTPServer {
	return &HTTPServer{
		HTTPServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       time.Duration(cfg.Timeouts.Read),
			ReadHeaderTimeout: time.Duration(cfg.Timeouts.ReadHeader),
			WriteTimeout:      time.Duration(cfg.Timeouts.Write),
			IdleTimeout:       time.Duration(cfg.Timeouts.Idle),
		},
		Logger:          log.OrDisabled(logger),
		ShutdownTimeout: time.Duration(cfg.Timeouts.Shutdown),
		listener:        listener,
		done:            make(chan struct{}),
	}
}

// Start serves requests until Stop is called. Listen and serve failures are sent to fatalError.
func (s *HTTPServer) Start(fatalError chan<- error) {
	s.started.Store(true)
	defer close(s.done)

	logger := s.Logger.With(log.String("address", s.HTTPServer.Addr))
	if s.listener == nil {
		var err error
		if s.listener, err = net.Listen("tcp", s.HTTPServer.Addr); err != nil {
			logger.Error("failed to listen for application HTTP server", log.Error(err))
			fatalError <- fmt.Errorf("listen %s: %w", s.HTTPServer.Addr, err)
			return
		}
	}
	if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		s.port.Store(int32(tcpAddr.Port)) //nolint:gosec // port fits int32
	}

	logger.Info("application HTTP server started",
		log.Int("port", s.GetPort()),
		log.Duration("read_timeout", s.HTTPServer.ReadTimeout),
		log.Duration("write_timeout", s.HTTPServer.WriteTimeout),
	)
	err := s.HTTPServer.Serve(s.listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("application HTTP server failed", log.Error(err))
		fatalError <- err
		return
	}
	logger.Info("application HTTP server closed")
}

// Stop shuts the server down. Gracefully it waits up to ShutdownTimeout for in-flight requests,
// otherwise connections are closed at once.
func (s *HTTPServer) Stop(gracefully bool) error {
	err := s.stop(gracefully)
	if s.started.Load() {
		<-s.done
	}
	return err
}

func (s *HTTPServer) stop(gracefully bool) error {
	if !gracefully {
		if err := s.HTTPServer.Close(); err != nil {
			s.Logger.Error("failed to close application HTTP server", log.Error(err))
			return err
		}
		return nil
	}

	s.Logger.Info("shutting down application HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("failed to shut down application HTTP server gracefully", log.Error(err))
		return err
	}
	return nil
}

// GetPort returns the TCP port the server listens on. It's 0 until the server is started.
func (s *HTTPServer) GetPort() int {
	return int(s.port.Load())
}
