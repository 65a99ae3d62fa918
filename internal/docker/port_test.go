package docker_test

import (
	"testing"

	"github.com/ryanmoran/disposable/internal/docker"
	"github.com/stretchr/testify/assert"
)

func TestPortBinding(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.True(t, docker.NewPortBinding(8080, 80, false).Valid())
		assert.True(t, docker.NewPortBinding(65535, 65535, true).Valid())
		assert.False(t, docker.NewPortBinding(0, 80, false).Valid())
		assert.False(t, docker.NewPortBinding(8080, 0, false).Valid())
		assert.False(t, docker.NewPortBinding(0, 0, true).Valid())
	})

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "0.0.0.0:8080:80", docker.NewPortBinding(8080, 80, true).String())
		assert.Equal(t, "127.0.0.1:8080:80", docker.NewPortBinding(8080, 80, false).String())
	})

	t.Run("accessors", func(t *testing.T) {
		binding := docker.NewPortBinding(8080, 80, true)
		assert.Equal(t, uint16(8080), binding.HostPort())
		assert.Equal(t, uint16(80), binding.ContainerPort())
		assert.True(t, binding.Wildcard())
	})
}

func TestImage(t *testing.T) {
	assert.True(t, docker.Image{Tag: "<none>:<none>"}.IsNone())
	assert.True(t, docker.Image{}.IsNone())
	assert.False(t, docker.Image{Tag: "httpd:2.4"}.IsNone())
}
