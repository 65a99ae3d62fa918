package manager_test

import (
	"testing"

	"github.com/ryanmoran/disposable/internal/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEphemeralPorts(t *testing.T) {
	port, err := manager.EphemeralPorts{}.Allocate()
	require.NoError(t, err)
	assert.NotZero(t, port)
}

func TestFixedPort(t *testing.T) {
	t.Run("returns the configured port", func(t *testing.T) {
		port, err := manager.FixedPort(8080).Allocate()
		require.NoError(t, err)
		assert.Equal(t, uint16(8080), port)
	})

	t.Run("rejects zero", func(t *testing.T) {
		_, err := manager.FixedPort(0).Allocate()
		require.Error(t, err)
	})
}

func TestShutdownReport(t *testing.T) {
	report := manager.ShutdownReport{Results: []manager.ShutdownResult{
		{ID: "a", Killed: true, Removed: true},
		{ID: "b", Removed: true},
		{ID: "c"},
	}}

	assert.Equal(t, []string{"c"}, report.Failed())
	require.Error(t, report.Err())
	assert.NoError(t, manager.ShutdownReport{}.Err())
}
