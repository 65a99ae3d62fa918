package docker_test

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/moby/moby/client"
)

// mockDockerClient is a mock implementation of docker.DockerClient for testing
type mockDockerClient struct {
	pingFunc            func(ctx context.Context, options client.PingOptions) (client.PingResult, error)
	imageListFunc       func(ctx context.Context, options client.ImageListOptions) (client.ImageListResult, error)
	imagePullFunc       func(ctx context.Context, refStr string, options client.ImagePullOptions) (client.ImagePullResponse, error)
	imageInspectFunc    func(ctx context.Context, imageID string, inspectOpts ...client.ImageInspectOption) (client.ImageInspectResult, error)
	containerListFunc   func(ctx context.Context, options client.ContainerListOptions) (client.ContainerListResult, error)
	containerCreateFunc func(ctx context.Context, options client.ContainerCreateOptions) (client.ContainerCreateResult, error)
	containerStartFunc  func(ctx context.Context, containerID string, options client.ContainerStartOptions) (client.ContainerStartResult, error)
	containerKillFunc   func(ctx context.Context, containerID string, options client.ContainerKillOptions) (client.ContainerKillResult, error)
	containerRemoveFunc func(ctx context.Context, containerID string, options client.ContainerRemoveOptions) (client.ContainerRemoveResult, error)
	closeFunc           func() error

	// calls records every engine method invoked, in order
	calls []string
}

func (m *mockDockerClient) Ping(ctx context.Context, options client.PingOptions) (client.PingResult, error) {
	m.calls = append(m.calls, "Ping")
	if m.pingFunc != nil {
		return m.pingFunc(ctx, options)
	}
	return client.PingResult{APIVersion: "1.52"}, nil
}

func (m *mockDockerClient) ImageList(ctx context.Context, options client.ImageListOptions) (client.ImageListResult, error) {
	m.calls = append(m.calls, "ImageList")
	if m.imageListFunc != nil {
		return m.imageListFunc(ctx, options)
	}
	return client.ImageListResult{}, errors.New("not implemented")
}

func (m *mockDockerClient) ImagePull(ctx context.Context, refStr string, options client.ImagePullOptions) (client.ImagePullResponse, error) {
	m.calls = append(m.calls, "ImagePull")
	if m.imagePullFunc != nil {
		return m.imagePullFunc(ctx, refStr, options)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDockerClient) ImageInspect(ctx context.Context, imageID string, inspectOpts ...client.ImageInspectOption) (client.ImageInspectResult, error) {
	m.calls = append(m.calls, "ImageInspect")
	if m.imageInspectFunc != nil {
		return m.imageInspectFunc(ctx, imageID, inspectOpts...)
	}
	return client.ImageInspectResult{}, errors.New("not implemented")
}

func (m *mockDockerClient) ContainerList(ctx context.Context, options client.ContainerListOptions) (client.ContainerListResult, error) {
	m.calls = append(m.calls, "ContainerList")
	if m.containerListFunc != nil {
		return m.containerListFunc(ctx, options)
	}
	return client.ContainerListResult{}, errors.New("not implemented")
}

func (m *mockDockerClient) ContainerCreate(ctx context.Context, options client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
	m.calls = append(m.calls, "ContainerCreate")
	if m.containerCreateFunc != nil {
		return m.containerCreateFunc(ctx, options)
	}
	return client.ContainerCreateResult{}, errors.New("not implemented")
}

func (m *mockDockerClient) ContainerStart(ctx context.Context, containerID string, options client.ContainerStartOptions) (client.ContainerStartResult, error) {
	m.calls = append(m.calls, "ContainerStart")
	if m.containerStartFunc != nil {
		return m.containerStartFunc(ctx, containerID, options)
	}
	return client.ContainerStartResult{}, errors.New("not implemented")
}

func (m *mockDockerClient) ContainerKill(ctx context.Context, containerID string, options client.ContainerKillOptions) (client.ContainerKillResult, error) {
	m.calls = append(m.calls, "ContainerKill")
	if m.containerKillFunc != nil {
		return m.containerKillFunc(ctx, containerID, options)
	}
	return client.ContainerKillResult{}, errors.New("not implemented")
}

func (m *mockDockerClient) ContainerRemove(ctx context.Context, containerID string, options client.ContainerRemoveOptions) (client.ContainerRemoveResult, error) {
	m.calls = append(m.calls, "ContainerRemove")
	if m.containerRemoveFunc != nil {
		return m.containerRemoveFunc(ctx, containerID, options)
	}
	return client.ContainerRemoveResult{}, errors.New("not implemented")
}

func (m *mockDockerClient) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

// mockPullResponse serves a canned progress stream. Only the reader half of
// client.ImagePullResponse is used by the code under test.
type mockPullResponse struct {
	client.ImagePullResponse
	body   io.Reader
	closed *bool
}

func newMockPullResponse(stream string) *mockPullResponse {
	closed := false
	return &mockPullResponse{body: strings.NewReader(stream), closed: &closed}
}

func (r *mockPullResponse) Read(p []byte) (int, error) { return r.body.Read(p) }

func (r *mockPullResponse) Close() error {
	*r.closed = true
	return nil
}
