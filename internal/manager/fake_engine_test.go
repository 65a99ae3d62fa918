package manager_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ryanmoran/disposable/internal/docker"
)

type createCall struct {
	Name    string
	Image   string
	Binding *docker.PortBinding
	UseGPU  bool
}

// fakeEngine is an in-memory manager.Engine. Failures are injected per call
// through the *Err fields and funcs.
type fakeEngine struct {
	mu sync.Mutex

	remote     bool
	images     []docker.Image
	containers []docker.Container

	listImagesErr     error
	listContainersErr error
	pullErr           error
	inspectResult     docker.Image
	inspectErr        error
	createFunc        func(call createCall) (string, error)
	killErrs          map[string]error
	removeErrs        map[string]error

	pulled  []string
	creates []createCall
	killed  []string
	removed []string
	closed  bool
	nextID  int
}

func (f *fakeEngine) IsRemote() bool { return f.remote }

func (f *fakeEngine) Host() string {
	if f.remote {
		return "10.0.0.5"
	}
	return "127.0.0.1"
}

func (f *fakeEngine) ListImages(ctx context.Context) ([]docker.Image, error) {
	if f.listImagesErr != nil {
		return []docker.Image{}, f.listImagesErr
	}
	return f.images, nil
}

func (f *fakeEngine) InspectImage(ctx context.Context, ref string) (docker.Image, error) {
	if f.inspectErr != nil {
		return docker.Image{}, f.inspectErr
	}
	return f.inspectResult, nil
}

func (f *fakeEngine) PullImage(ctx context.Context, ref string) error {
	f.pulled = append(f.pulled, ref)
	return f.pullErr
}

func (f *fakeEngine) ListContainers(ctx context.Context, all bool) ([]docker.Container, error) {
	if f.listContainersErr != nil {
		return []docker.Container{}, f.listContainersErr
	}
	return f.containers, nil
}

func (f *fakeEngine) CreateContainer(ctx context.Context, name, image string, binding *docker.PortBinding, useGPU bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := createCall{Name: name, Image: image, Binding: binding, UseGPU: useGPU}
	f.creates = append(f.creates, call)
	if f.createFunc != nil {
		return f.createFunc(call)
	}

	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID), nil
}

func (f *fakeEngine) KillContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.killed = append(f.killed, id)
	return f.killErrs[id]
}

func (f *fakeEngine) RemoveContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, id)
	return f.removeErrs[id]
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

var errEngine = errors.New("engine failure")
