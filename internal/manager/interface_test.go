package manager_test

import (
	"github.com/ryanmoran/disposable/internal/docker"
	"github.com/ryanmoran/disposable/internal/manager"
)

// Compile-time check that docker.Client implements the Engine interface
var _ manager.Engine = docker.Client{}
