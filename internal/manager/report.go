package manager

import (
	"errors"
	"fmt"
)

// ShutdownResult is the outcome of tearing down one container.
type ShutdownResult struct {
	ID        string
	Killed    bool
	Removed   bool
	KillErr   error
	RemoveErr error
}

// ShutdownReport lists the outcome for every container ShutdownAll attempted.
type ShutdownReport struct {
	Results []ShutdownResult
}

// Failed returns the IDs of containers that could not be removed and may
// still exist on the engine.
func (r ShutdownReport) Failed() []string {
	var ids []string
	for _, result := range r.Results {
		if !result.Removed {
			ids = append(ids, result.ID)
		}
	}
	return ids
}

// Err joins the removal failures. A failed kill of a container that was
// removed anyway is not an error.
func (r ShutdownReport) Err() error {
	var errs []error
	for _, result := range r.Results {
		if result.Removed {
			continue
		}
		cause := errors.Join(result.KillErr, result.RemoveErr)
		if cause == nil {
			cause = errors.New("removal was not attempted")
		}
		errs = append(errs, fmt.Errorf("container %s may still exist: %w", result.ID, cause))
	}
	return errors.Join(errs...)
}
