/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"time"
)

// ErrWorkerUnitStopTimeoutExceeded is returned when the worker doesn't finish within the graceful stop timeout.
var ErrWorkerUnitStopTimeoutExceeded = errors.New("worker unit stop timeout exceeded")

// WorkerUnit presents a Worker as a Unit. Stop cancels the context passed to the worker.
type WorkerUnit struct {
	worker              Worker
	gracefulStopTimeout time.Duration
	ctx                 context.Context
	cancel              context.CancelFunc
	done                chan struct{}
}

// NewWorkerUnit creates a new WorkerUnit. Zero gracefulStopTimeout means waiting for the worker without a limit.
func NewWorkerUnit(worker Worker, gracefulStopTimeout time.Duration) *WorkerUnit {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerUnit{
		worker:              worker,
		gracefulStopTimeout: gracefulStopTimeout,
		ctx:                 ctx,
		cancel:              cancel,
		done:                make(chan struct{}),
	}
}

// Start runs the worker and blocks until it returns.
func (u *WorkerUnit) Start(fatalErr chan<- error) {
	defer close(u.done)
	if err := u.worker.Run(u.ctx); err != nil {
		fatalErr <- err
	}
}

// Stop cancels the worker and, if gracefully is true, waits for it to return.
func (u *WorkerUnit) Stop(gracefully bool) error {
	u.cancel()
	if !gracefully {
		return nil
	}
	if u.gracefulStopTimeout == 0 {
		<-u.done
		return nil
	}
	select {
	case <-u.done:
		return nil
	case <-time.After(u.gracefulStopTimeout):
		return ErrWorkerUnitStopTimeoutExceeded
	}
}
