/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acronis/go-quotakit/log"
)

// Service starts a unit and stops it gracefully on a shutdown signal or context cancellation.
type Service struct {
	Unit            Unit
	Logger          log.FieldLogger
	ShutdownSignals []os.Signal
}

// New creates a new Service which stops the unit on SIGINT or SIGTERM.
func New(logger log.FieldLogger, unit Unit) *Service {
	return &Service{
		Unit:            unit,
		Logger:          log.OrDisabled(logger),
		ShutdownSignals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Run starts the unit in a separate goroutine and blocks until a fatal error occurs,
// ctx is done, or a shutdown signal is received.
func (s *Service) Run(ctx context.Context) error {
	signals := make(chan os.Signal, 1)
	if len(s.ShutdownSignals) != 0 {
		signal.Notify(signals, s.ShutdownSignals...)
		defer signal.Stop(signals)
	}

	fatalErr := make(chan error, 1)
	go s.Unit.Start(fatalErr)

	select {
	case err := <-fatalErr:
		s.Logger.Error("service fatal error", log.Error(err))
		return fmt.Errorf("fatal error: %w", err)
	case <-ctx.Done():
		s.Logger.Info("context is canceled, service will be stopped")
	case sig := <-signals:
		s.Logger.Info("service got signal", log.String("signal", sig.String()))
	}

	if err := s.Unit.Stop(true); err != nil {
		return fmt.Errorf("stop service gracefully: %w", err)
	}
	return nil
}
