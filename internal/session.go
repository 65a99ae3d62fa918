package internal

import (
	"fmt"

	"github.com/google/uuid"
)

type Session struct {
	id string
}

// GenerateSession creates a new session with a short random identifier. A
// session names the containers created during one run, so two runs against
// the same engine do not collide.
func GenerateSession() Session {
	return Session{id: uuid.New().String()[:8]}
}

// String returns the string representation of the session, equivalent to calling Prefix().
func (s Session) String() string {
	return s.Prefix()
}

// Prefix returns the container name prefix in the format "disposable-<hex>".
func (s Session) Prefix() string {
	return fmt.Sprintf("disposable-%s", s.id)
}
