/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/acronis/go-quotakit/log"
)

// ErrPeriodicWorkerStop may be returned by a worker to interrupt PeriodicWorker's loop.
var ErrPeriodicWorkerStop = errors.New("stop periodic worker")

// Worker performs some (usually long-running) work.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run is a part of Worker interface.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicWorker runs the underlying worker with a fixed delay between runs until the context is done.
// Errors of single runs are logged and don't stop the loop.
type PeriodicWorker struct {
	Name         string
	Worker       Worker
	Interval     time.Duration
	InitialDelay time.Duration
	Logger       log.FieldLogger
}

// NewPeriodicWorker creates a new PeriodicWorker. The first run happens after one interval.
func NewPeriodicWorker(name string, worker Worker, interval time.Duration, logger log.FieldLogger) *PeriodicWorker {
	return &PeriodicWorker{
		Name:         name,
		Worker:       worker,
		Interval:     interval,
		InitialDelay: interval,
		Logger:       log.OrDisabled(logger).With(log.String("worker", name)),
	}
}

// Run runs the loop.
func (pw *PeriodicWorker) Run(ctx context.Context) error {
	logger := log.OrDisabled(pw.Logger)
	defer func() {
		if p := recover(); p != nil {
			const logStackSize = 8192
			stack := make([]byte, logStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			logger.Error(fmt.Sprintf("panic: %+v", p), log.Bytes("stack", stack))
			panic(p)
		}
	}()

	logger.Info("periodic worker started", log.Duration("interval", pw.Interval))
	timer := time.NewTimer(pw.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("periodic worker stopped")
			return nil
		case <-timer.C:
		}

		if err := pw.Worker.Run(ctx); err != nil {
			if errors.Is(err, ErrPeriodicWorkerStop) {
				logger.Info("periodic worker stopped by itself")
				return nil
			}
			logger.Error("periodic worker run failed", log.Error(err))
		}
		timer.Reset(pw.Interval)
	}
}
