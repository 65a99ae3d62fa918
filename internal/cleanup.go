package internal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// CleanupManager tracks resources and ensures ordered cleanup in LIFO order.
type CleanupManager struct {
	mu     sync.Mutex
	funcs  []cleanupFunc
	logger *log.Logger
}

type cleanupFunc struct {
	name string
	fn   func() error
}

// NewCleanupManager creates a new cleanup manager that reports failures to logger.
func NewCleanupManager(logger *log.Logger) *CleanupManager {
	return &CleanupManager{logger: logger}
}

// Add registers a cleanup function. Functions are executed in LIFO order
// (last added, first executed) to ensure proper cleanup sequencing.
func (m *CleanupManager) Add(name string, fn func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append([]cleanupFunc{{name, fn}}, m.funcs...)
}

// Execute runs all cleanup functions in reverse order (LIFO) and forgets them.
// Every function runs even if earlier ones fail; the failures are logged and
// returned joined.
func (m *CleanupManager) Execute() error {
	m.mu.Lock()
	funcs := m.funcs
	m.funcs = nil
	m.mu.Unlock()

	var errs []error
	for _, cleanup := range funcs {
		if err := cleanup.fn(); err != nil {
			m.logger.Error("cleanup failed", "name", cleanup.name, "err", err)
			errs = append(errs, fmt.Errorf("cleanup %s: %w", cleanup.name, err))
		}
	}

	return errors.Join(errs...)
}
