package manager

import (
	"errors"
	"fmt"
	"net"
)

// PortAllocator picks the host port a new container is published on.
type PortAllocator interface {
	Allocate() (uint16, error)
}

// EphemeralPorts asks the local kernel for a currently free TCP port. The port
// is released before it is returned, so the engine may still find it taken;
// the Manager retries with a fresh port when that happens. For remote engines
// the port is only a likely candidate for the same reason.
type EphemeralPorts struct{}

func (EphemeralPorts) Allocate() (uint16, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("failed to reserve an ephemeral port: %w\nAnother process may be exhausting local ports", err)
	}
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address %q", listener.Addr())
	}

	return uint16(addr.Port), nil
}

// FixedPort always hands out the same caller-chosen port.
type FixedPort uint16

func (p FixedPort) Allocate() (uint16, error) {
	if p == 0 {
		return 0, errors.New("fixed host port must be nonzero")
	}
	return uint16(p), nil
}
