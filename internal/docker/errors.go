package docker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPortBinding is returned when a container is requested with a
	// binding whose ports are unusable. No engine call is made.
	ErrInvalidPortBinding = errors.New("invalid port binding")

	// ErrIncompleteImage is returned when an image inspection lacks repo tags
	// or a config section.
	ErrIncompleteImage = errors.New("image inspection is missing required fields")

	// ErrGPUUnsupported is returned when GPUs are requested from an engine
	// too old to accept device requests. No engine call is made.
	ErrGPUUnsupported = errors.New("engine does not support gpu device requests")
)

// CommandError is the uniform failure returned by every Client command that
// reached the engine. ContainerID is set when a container was created but a
// later step failed, leaving it behind.
type CommandError struct {
	Command     string
	Target      string
	ContainerID string
	Err         error
}

func (e *CommandError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("failed to %s: %v", e.Command, e.Err)
	}

	return fmt.Sprintf("failed to %s %q: %v", e.Command, e.Target, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

var portConflictMessages = []string{
	"port is already allocated",
	"address already in use",
	"ports are not available",
}

// IsPortConflict reports whether err was caused by the engine failing to bind
// a host port that is already taken.
func IsPortConflict(err error) bool {
	if err == nil {
		return false
	}

	message := strings.ToLower(err.Error())
	for _, m := range portConflictMessages {
		if strings.Contains(message, m) {
			return true
		}
	}

	return false
}
