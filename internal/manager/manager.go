package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/distribution/reference"
	"github.com/ryanmoran/disposable/internal/docker"
)

const (
	DefaultMaxPortAttempts     = 3
	DefaultShutdownConcurrency = 4
)

// ErrNoExposedPort is returned when a port should be published but neither
// the caller nor the image names a container port.
var ErrNoExposedPort = errors.New("image does not expose a port")

// Engine is the subset of docker.Client the manager drives.
type Engine interface {
	IsRemote() bool
	Host() string
	ListImages(ctx context.Context) ([]docker.Image, error)
	InspectImage(ctx context.Context, ref string) (docker.Image, error)
	PullImage(ctx context.Context, ref string) error
	ListContainers(ctx context.Context, all bool) ([]docker.Container, error)
	CreateContainer(ctx context.Context, name, image string, binding *docker.PortBinding, useGPU bool) (string, error)
	KillContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	Close() error
}

// Options configures a Manager.
type Options struct {
	Logger *log.Logger

	// Ports chooses host ports. Defaults to EphemeralPorts.
	Ports PortAllocator

	// ContainerPort is the port published inside the container. Zero uses
	// the first port the image exposes.
	ContainerPort uint16

	// MaxPortAttempts bounds how many host ports are tried when the engine
	// reports the chosen one as taken. A FixedPort is only ever tried once.
	MaxPortAttempts int

	// ShutdownConcurrency bounds how many containers are torn down at once.
	ShutdownConcurrency int

	// FirstIndex is the counter value used for the first container name.
	FirstIndex int
}

// ContainerInfo describes a container created by the manager. APIPort is zero
// when no port was published.
type ContainerInfo struct {
	ContainerID string
	Name        string
	Host        string
	APIPort     uint16
}

// Manager owns the containers it creates. It is safe for concurrent use.
type Manager struct {
	engine              Engine
	prefix              string
	logger              *log.Logger
	ports               PortAllocator
	containerPort       uint16
	maxPortAttempts     int
	shutdownConcurrency int

	mu      sync.Mutex
	counter int
	tracked map[string]struct{}
}

func New(engine Engine, prefix string, options Options) *Manager {
	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	ports := options.Ports
	if ports == nil {
		ports = EphemeralPorts{}
	}

	maxPortAttempts := options.MaxPortAttempts
	if maxPortAttempts <= 0 {
		maxPortAttempts = DefaultMaxPortAttempts
	}
	if _, fixed := ports.(FixedPort); fixed {
		maxPortAttempts = 1
	}

	shutdownConcurrency := options.ShutdownConcurrency
	if shutdownConcurrency <= 0 {
		shutdownConcurrency = DefaultShutdownConcurrency
	}

	return &Manager{
		engine:              engine,
		prefix:              prefix,
		logger:              logger.With("prefix", prefix),
		ports:               ports,
		containerPort:       options.ContainerPort,
		maxPortAttempts:     maxPortAttempts,
		shutdownConcurrency: shutdownConcurrency,
		counter:             options.FirstIndex,
		tracked:             make(map[string]struct{}),
	}
}

// Prefix returns the prefix every container name starts with.
func (m *Manager) Prefix() string {
	return m.prefix
}

// CreateContainerByImage starts a new container from image, pulling the image
// first if the engine does not have it. When exposePort is set, one container
// port is published on a freshly allocated host port, on all interfaces for
// remote engines and on loopback otherwise. The container is tracked only if
// it was created and started.
func (m *Manager) CreateContainerByImage(ctx context.Context, image string, exposePort, useGPU bool) (ContainerInfo, error) {
	err := m.ensureImage(ctx, image)
	if err != nil {
		return ContainerInfo{}, err
	}

	var containerPort uint16
	if exposePort {
		containerPort, err = m.resolveContainerPort(ctx, image)
		if err != nil {
			return ContainerInfo{}, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxPortAttempts; attempt++ {
		name := m.nextName()

		var binding *docker.PortBinding
		if exposePort {
			hostPort, err := m.ports.Allocate()
			if err != nil {
				return ContainerInfo{}, fmt.Errorf("failed to allocate a host port for %q: %w", name, err)
			}
			b := docker.NewPortBinding(hostPort, containerPort, m.engine.IsRemote())
			binding = &b
		}

		id, err := m.engine.CreateContainer(ctx, name, image, binding, useGPU)
		if err == nil {
			m.track(id)

			info := ContainerInfo{
				ContainerID: id,
				Name:        name,
				Host:        m.engine.Host(),
			}
			if binding != nil {
				info.APIPort = binding.HostPort()
			}

			m.logger.Info("created container", "name", name, "id", id, "image", image, "port", info.APIPort, "gpu", useGPU)
			return info, nil
		}

		lastErr = err
		m.discardDangling(ctx, err)

		if binding == nil || !docker.IsPortConflict(err) {
			break
		}
		m.logger.Warn("host port unavailable, retrying", "name", name, "binding", binding.String(), "attempt", attempt)
	}

	return ContainerInfo{}, fmt.Errorf("failed to create container from image %q: %w", image, lastErr)
}

// ContainerIDs returns a sorted snapshot of the tracked container IDs.
func (m *Manager) ContainerIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Sorted(maps.Keys(m.tracked))
}

// ShutdownAll kills and removes every tracked container. Each container is
// handled independently, so one failure never stops the others from being
// attempted. Afterwards none of them is tracked, whatever the outcome; the
// report says which ones may have survived.
func (m *Manager) ShutdownAll(ctx context.Context) ShutdownReport {
	ids := m.ContainerIDs()
	if len(ids) == 0 {
		return ShutdownReport{}
	}

	results := teardownAll(ctx, m.engine, ids, m.shutdownConcurrency)

	m.mu.Lock()
	for _, id := range ids {
		delete(m.tracked, id)
	}
	m.mu.Unlock()

	report := ShutdownReport{Results: results}
	if failed := report.Failed(); len(failed) > 0 {
		m.logger.Warn("some containers may still exist", "ids", failed)
	} else {
		m.logger.Info("shut down all containers", "count", len(ids))
	}

	return report
}

// Close releases the engine connection. Tracked containers are left alone.
func (m *Manager) Close() error {
	return m.engine.Close()
}

func (m *Manager) ensureImage(ctx context.Context, image string) error {
	want := normalizeReference(image)

	images, err := m.engine.ListImages(ctx)
	if err != nil {
		m.logger.Debug("could not list images, pulling", "image", image)
	}
	for _, local := range images {
		if slices.ContainsFunc(localTags(local), func(tag string) bool {
			return normalizeReference(tag) == want
		}) {
			return nil
		}
	}

	m.logger.Info("pulling image", "image", image)
	err = m.engine.PullImage(ctx, image)
	if err != nil {
		return fmt.Errorf("failed to ensure image %q is available: %w\nCheck the image reference and registry access", image, err)
	}

	return nil
}

func (m *Manager) resolveContainerPort(ctx context.Context, image string) (uint16, error) {
	if m.containerPort != 0 {
		return m.containerPort, nil
	}

	inspected, err := m.engine.InspectImage(ctx, image)
	if err != nil {
		return 0, fmt.Errorf("failed to determine container port of %q: %w", image, err)
	}

	if len(inspected.ExposedPorts) == 0 {
		return 0, fmt.Errorf("failed to determine container port of %q: %w\nSet a container port explicitly", image, ErrNoExposedPort)
	}

	return inspected.ExposedPorts[0], nil
}

func (m *Manager) nextName() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := fmt.Sprintf("%s-%d", m.prefix, m.counter)
	m.counter++
	return name
}

func (m *Manager) track(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tracked[id] = struct{}{}
}

// discardDangling removes a container that was created but failed to start.
func (m *Manager) discardDangling(ctx context.Context, err error) {
	var cmdErr *docker.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.ContainerID == "" {
		return
	}

	if removeErr := m.engine.RemoveContainer(ctx, cmdErr.ContainerID); removeErr != nil {
		m.logger.Warn("failed to remove unstarted container", "id", cmdErr.ContainerID, "err", removeErr)
	}
}

func localTags(image docker.Image) []string {
	if len(image.Tags) > 0 {
		return image.Tags
	}
	return []string{image.Tag}
}

func normalizeReference(ref string) string {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return ref
	}

	return reference.FamiliarString(reference.TagNameOnly(named))
}
