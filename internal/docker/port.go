package docker

import (
	"fmt"
	"net/netip"

	"github.com/docker/go-connections/nat"
	"github.com/moby/moby/api/types/network"
)

const (
	wildcardAddress = "0.0.0.0"
	loopbackAddress = "127.0.0.1"
)

// PortBinding maps one host port to one container port. A wildcard binding
// listens on all host interfaces; otherwise only on loopback.
type PortBinding struct {
	hostPort      uint16
	containerPort uint16
	wildcard      bool
}

func NewPortBinding(hostPort, containerPort uint16, wildcard bool) PortBinding {
	return PortBinding{
		hostPort:      hostPort,
		containerPort: containerPort,
		wildcard:      wildcard,
	}
}

func (b PortBinding) HostPort() uint16      { return b.hostPort }
func (b PortBinding) ContainerPort() uint16 { return b.containerPort }
func (b PortBinding) Wildcard() bool        { return b.wildcard }

// Valid reports whether both ports are usable. The upper bound of 65535 is
// enforced by the field type.
func (b PortBinding) Valid() bool {
	return b.hostPort != 0 && b.containerPort != 0
}

// String renders the binding in the engine's port-mapping syntax,
// "<bind-address>:<hostPort>:<containerPort>".
func (b PortBinding) String() string {
	address := loopbackAddress
	if b.wildcard {
		address = wildcardAddress
	}

	return fmt.Sprintf("%s:%d:%d", address, b.hostPort, b.containerPort)
}

// portMap parses the rendered binding into the exposed port set and port map
// expected by the engine's container and host configuration.
func (b PortBinding) portMap() (network.PortSet, network.PortMap, error) {
	mappings, err := nat.ParsePortSpec(b.String())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse port binding %q: %w", b.String(), err)
	}

	exposed := make(network.PortSet)
	bindings := make(network.PortMap)
	for _, mapping := range mappings {
		port, err := network.ParsePort(string(mapping.Port))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %q: %w", mapping.Port, err)
		}

		var hostIP netip.Addr
		if mapping.Binding.HostIP != "" {
			hostIP, err = netip.ParseAddr(mapping.Binding.HostIP)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid host address %q: %w", mapping.Binding.HostIP, err)
			}
		}

		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], network.PortBinding{
			HostIP:   hostIP,
			HostPort: mapping.Binding.HostPort,
		})
	}

	return exposed, bindings, nil
}
