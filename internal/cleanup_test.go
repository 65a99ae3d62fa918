package internal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
)

func TestCleanupManager_Execute_LIFO_Order(t *testing.T) {
	m := NewCleanupManager(log.New(&bytes.Buffer{}))
	var order []string

	m.Add("first", func() error {
		order = append(order, "first")
		return nil
	})
	m.Add("second", func() error {
		order = append(order, "second")
		return nil
	})
	m.Add("third", func() error {
		order = append(order, "third")
		return nil
	})

	if err := m.Execute(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("expected 3 cleanups, got %d", len(order))
	}
	if order[0] != "third" || order[1] != "second" || order[2] != "first" {
		t.Errorf("expected LIFO order [third, second, first], got %v", order)
	}
}

func TestCleanupManager_Execute_ContinuesOnError(t *testing.T) {
	var logs bytes.Buffer
	m := NewCleanupManager(log.New(&logs))
	var executed []string
	failure := errors.New("second failed")

	m.Add("first", func() error {
		executed = append(executed, "first")
		return nil
	})
	m.Add("second", func() error {
		executed = append(executed, "second")
		return failure
	})
	m.Add("third", func() error {
		executed = append(executed, "third")
		return nil
	})

	err := m.Execute()

	if len(executed) != 3 {
		t.Fatalf("expected all 3 cleanups to execute, got %d", len(executed))
	}
	if executed[0] != "third" || executed[1] != "second" || executed[2] != "first" {
		t.Errorf("expected all cleanups in LIFO order, got %v", executed)
	}
	if !errors.Is(err, failure) {
		t.Errorf("expected joined error to wrap %v, got %v", failure, err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("second")) {
		t.Errorf("expected failure to be logged, got %q", logs.String())
	}
}

func TestCleanupManager_Execute_RunsOnce(t *testing.T) {
	m := NewCleanupManager(log.New(&bytes.Buffer{}))
	calls := 0
	m.Add("counted", func() error {
		calls++
		return nil
	})

	_ = m.Execute()
	_ = m.Execute()

	if calls != 1 {
		t.Errorf("expected cleanup to run once, ran %d times", calls)
	}
}

func TestCleanupManager_Execute_EmptyManager(t *testing.T) {
	m := NewCleanupManager(log.New(&bytes.Buffer{}))
	if err := m.Execute(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
