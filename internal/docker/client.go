package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
	"golang.org/x/mod/semver"
)

const (
	gpuCapability = "gpu"

	// minGPUAPIVersion is the first engine API version accepting device
	// requests.
	minGPUAPIVersion = "1.40"
)

// Options configures a Client.
type Options struct {
	// Logger receives a record of every failed command. Defaults to a
	// discarding logger.
	Logger *log.Logger

	// PullTimeout bounds PullImage. Zero waits for the engine indefinitely.
	PullTimeout time.Duration

	// RemoteHost is the address of a remote engine. When set, the client
	// reports itself as remote and published ports are reached on this host.
	RemoteHost string
}

type Client struct {
	client      DockerClient
	logger      *log.Logger
	remoteHost  string
	pullTimeout time.Duration
	apiVersion  string
}

// NewClient wraps the provided Docker client interface and probes the engine.
// Construction fails if the engine cannot be reached, since no other command
// can succeed without a live connection.
func NewClient(ctx context.Context, dockerClient DockerClient, options Options) (Client, error) {
	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	c := Client{
		client:      dockerClient,
		logger:      logger,
		remoteHost:  options.RemoteHost,
		pullTimeout: options.PullTimeout,
	}

	ping, err := dockerClient.Ping(ctx, client.PingOptions{})
	if err != nil {
		dockerClient.Close()
		return Client{}, fmt.Errorf("failed to connect to docker engine at %s: %w\nMake sure the engine is running and reachable", c.Host(), err)
	}
	c.apiVersion = ping.APIVersion
	logger.Info("connected to docker engine", "host", c.Host(), "remote", c.IsRemote(), "api", ping.APIVersion)

	return c, nil
}

// NewLocalClient connects to the engine discovered from the environment
// (DOCKER_HOST or the platform default socket).
func NewLocalClient(ctx context.Context, options Options) (Client, error) {
	cli, err := client.New(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return Client{}, fmt.Errorf("failed to create docker client: %w\nEnsure Docker is running and DOCKER_HOST is set correctly", err)
	}

	options.RemoteHost = ""
	return NewClient(ctx, cli, options)
}

// NewRemoteClient connects to an engine listening on tcp://<host>:<port>.
func NewRemoteClient(ctx context.Context, host string, port uint16, options Options) (Client, error) {
	if host == "" || port == 0 {
		return Client{}, fmt.Errorf("invalid remote docker endpoint %s:%d\nBoth host and port are required", host, port)
	}

	endpoint := fmt.Sprintf("tcp://%s:%d", host, port)
	cli, err := client.New(client.WithHost(endpoint), client.WithAPIVersionNegotiation())
	if err != nil {
		return Client{}, fmt.Errorf("failed to create docker client for %s: %w", endpoint, err)
	}

	options.RemoteHost = host
	return NewClient(ctx, cli, options)
}

// IsRemote reports whether the engine runs on another host.
func (c Client) IsRemote() bool {
	return c.remoteHost != ""
}

// Host returns the address on which ports published by the engine are
// reachable.
func (c Client) Host() string {
	if c.IsRemote() {
		return c.remoteHost
	}
	return loopbackAddress
}

// Close closes the underlying Docker client connection.
func (c Client) Close() error {
	return c.client.Close()
}

// ListImages returns every tagged image known to the engine, including
// intermediate layers, with all of its repo tags. Untagged images are skipped. On failure the list is
// empty.
func (c Client) ListImages(ctx context.Context) ([]Image, error) {
	result, err := c.client.ImageList(ctx, client.ImageListOptions{All: true})
	if err != nil {
		return []Image{}, c.fail("list images", "", err)
	}

	images := []Image{}
	for _, summary := range result.Items {
		tags := repoTags(summary.RepoTags)
		if len(tags) == 0 {
			continue
		}

		images = append(images, Image{ID: summary.ID, Tag: tags[0], Tags: tags})
	}

	return images, nil
}

// PullImage pulls the image and blocks until the engine reports the pull has
// finished. Errors reported inside the progress stream fail the pull.
func (c Client) PullImage(ctx context.Context, ref string) error {
	if c.pullTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pullTimeout)
		defer cancel()
	}

	response, err := c.client.ImagePull(ctx, ref, client.ImagePullOptions{})
	if err != nil {
		return c.fail("pull image", ref, err)
	}
	defer response.Close()

	decoder := json.NewDecoder(response)
	for decoder.More() {
		select {
		case <-ctx.Done():
			return c.fail("pull image", ref, ctx.Err())
		default:
		}

		var message struct {
			Status      string `json:"status"`
			Error       string `json:"error"`
			ErrorDetail struct {
				Message string `json:"message"`
			} `json:"errorDetail"`
		}
		if err := decoder.Decode(&message); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return c.fail("pull image", ref, err)
		}

		if message.ErrorDetail.Message != "" {
			return c.fail("pull image", ref, errors.New(message.ErrorDetail.Message))
		}
		if message.Error != "" {
			return c.fail("pull image", ref, errors.New(message.Error))
		}

		if message.Status != "" {
			c.logger.Debug("pull progress", "image", ref, "status", message.Status)
		}
	}

	c.logger.Info("pulled image", "image", ref)
	return nil
}

// ListContainers returns the engine's containers. Stopped containers are only
// included when all is true. On failure the list is empty.
func (c Client) ListContainers(ctx context.Context, all bool) ([]Container, error) {
	result, err := c.client.ContainerList(ctx, client.ContainerListOptions{All: all})
	if err != nil {
		return []Container{}, c.fail("list containers", "", err)
	}

	containers := make([]Container, 0, len(result.Items))
	for _, item := range result.Items {
		containers = append(containers, Container{
			ID:     item.ID,
			Image:  item.Image,
			Status: item.Status,
			Name:   containerName(item.Names),
		})
	}

	return containers, nil
}

// InspectImage describes a local image, including the ports its config
// declares as exposed. An inspection without repo tags or config is a failure.
func (c Client) InspectImage(ctx context.Context, ref string) (Image, error) {
	result, err := c.client.ImageInspect(ctx, ref)
	if err != nil {
		return Image{}, c.fail("inspect image", ref, err)
	}

	tags := repoTags(result.RepoTags)
	if len(tags) == 0 || result.Config == nil {
		return Image{}, c.fail("inspect image", ref, ErrIncompleteImage)
	}

	return Image{
		ID:           result.ID,
		Tag:          tags[0],
		Tags:         tags,
		ExposedPorts: exposedPorts(result.Config.ExposedPorts),
	}, nil
}

// CreateContainer creates and starts a container named name from image and
// returns its ID. A nil binding publishes no ports; an invalid one is rejected
// before any engine call. When useGPU is set, every available GPU is requested.
//
// If the container was created but could not be started, the returned
// *CommandError carries its ID. The container is not removed.
func (c Client) CreateContainer(ctx context.Context, name, image string, binding *PortBinding, useGPU bool) (string, error) {
	if binding != nil && !binding.Valid() {
		c.logger.Error("rejected port binding", "name", name, "binding", binding.String())
		return "", fmt.Errorf("failed to create container %q: %w", name, ErrInvalidPortBinding)
	}

	if useGPU && !c.supportsGPU() {
		c.logger.Error("rejected gpu request", "name", name, "api", c.apiVersion)
		return "", fmt.Errorf("failed to create container %q: %w (engine API %s, need %s)", name, ErrGPUUnsupported, c.apiVersion, minGPUAPIVersion)
	}

	config := &container.Config{
		Image:        image,
		Tty:          true,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostConfig := &container.HostConfig{}

	if binding != nil {
		exposed, ports, err := binding.portMap()
		if err != nil {
			return "", fmt.Errorf("failed to create container %q: %w", name, err)
		}
		config.ExposedPorts = exposed
		hostConfig.PortBindings = ports
	}

	if useGPU {
		hostConfig.DeviceRequests = []container.DeviceRequest{
			{
				Count:        -1,
				Capabilities: [][]string{{gpuCapability}},
			},
		}
	}

	created, err := c.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     config,
		HostConfig: hostConfig,
		Name:       name,
	})
	if err != nil {
		return "", c.fail("create container", name, err)
	}

	_, err = c.client.ContainerStart(ctx, created.ID, client.ContainerStartOptions{})
	if err != nil {
		return "", c.record(&CommandError{
			Command:     "start container",
			Target:      name,
			ContainerID: created.ID,
			Err:         err,
		})
	}

	c.logger.Debug("started container", "name", name, "id", created.ID, "image", image, "gpu", useGPU)
	return created.ID, nil
}

// KillContainer sends SIGKILL to the container.
func (c Client) KillContainer(ctx context.Context, id string) error {
	_, err := c.client.ContainerKill(ctx, id, client.ContainerKillOptions{})
	if err != nil {
		return c.fail("kill container", id, err)
	}

	return nil
}

// RemoveContainer forcibly removes the container, running or not.
func (c Client) RemoveContainer(ctx context.Context, id string) error {
	_, err := c.client.ContainerRemove(ctx, id, client.ContainerRemoveOptions{
		Force: true,
	})
	if err != nil {
		return c.fail("remove container", id, err)
	}

	return nil
}

// supportsGPU reports whether the engine accepts device requests. An engine
// that did not report its API version is given the benefit of the doubt.
func (c Client) supportsGPU() bool {
	if c.apiVersion == "" {
		return true
	}

	version := "v" + c.apiVersion
	if !semver.IsValid(version) {
		return true
	}

	return semver.Compare(version, "v"+minGPUAPIVersion) >= 0
}

func (c Client) fail(command, target string, err error) *CommandError {
	return c.record(&CommandError{Command: command, Target: target, Err: err})
}

func (c Client) record(err *CommandError) *CommandError {
	keyvals := []interface{}{"command", err.Command, "err", err.Err}
	if err.Target != "" {
		keyvals = append(keyvals, "target", err.Target)
	}
	if err.ContainerID != "" {
		keyvals = append(keyvals, "container", err.ContainerID)
	}
	c.logger.Error("docker command failed", keyvals...)

	return err
}

func exposedPorts(declared map[string]struct{}) []uint16 {
	ports := make([]uint16, 0, len(declared))
	for spec := range declared {
		port, err := network.ParsePort(spec)
		if err != nil {
			continue
		}
		ports = append(ports, uint16(port.Num()))
	}

	slices.Sort(ports)
	return slices.Compact(ports)
}
