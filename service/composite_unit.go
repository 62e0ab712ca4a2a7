/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"strings"
	"sync"
)

// CompositeUnit runs several units as one.
type CompositeUnit struct {
	Units []Unit
}

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{units}
}

// Start starts all units concurrently and blocks until all of their Start methods return.
// If any unit fails, all units are stopped non-gracefully and a CompositeUnitError
// with the start and stop errors is sent to fatalErr.
func (cu *CompositeUnit) Start(fatalErr chan<- error) {
	unitErrs := make(chan error, len(cu.Units))
	failed := make(chan struct{})
	var failOnce sync.Once
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, u := range cu.Units {
		go func(u Unit) {
			defer wg.Done()
			unitFatalErr := make(chan error, 1)
			u.Start(unitFatalErr)
			select {
			case err := <-unitFatalErr:
				unitErrs <- err
				failOnce.Do(func() { close(failed) })
			default:
			}
		}(u)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
		select {
		case <-failed:
		default:
			return
		}
	case <-failed:
	}

	stopErr := cu.Stop(false)
	<-allDone
	close(unitErrs)
	var errs []error
	for err := range unitErrs {
		errs = append(errs, err)
	}
	if stopErr != nil {
		errs = append(errs, stopErr.(*CompositeUnitError).UnitErrors...)
	}
	fatalErr <- &CompositeUnitError{errs}
}

// Stop stops all units concurrently and returns a CompositeUnitError if any of them failed to stop.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	results := make(chan error, len(cu.Units))
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, u := range cu.Units {
		go func(u Unit) {
			defer wg.Done()
			results <- u.Stop(gracefully)
		}(u)
	}
	wg.Wait()
	close(results)

	var errs []error
	for err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &CompositeUnitError{errs}
	}
	return nil
}

// CompositeUnitError contains errors of the composed units.
type CompositeUnitError struct {
	UnitErrors []error
}

// Error returns a string representation of a units composition error.
func (cue *CompositeUnitError) Error() string {
	msgs := make([]string, 0, len(cue.UnitErrors))
	for _, err := range cue.UnitErrors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap allows checking the unit errors with errors.Is and errors.As.
func (cue *CompositeUnitError) Unwrap() []error {
	return cue.UnitErrors
}
