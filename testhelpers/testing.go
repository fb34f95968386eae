package testhelpers

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"localclaw/internal/containers"
)

// FakeContainer is a container held by FakeBackend
type FakeContainer struct {
	ID      string
	Spec    containers.Spec
	Running bool
	Port    string
}

// FakeBackend is an in-memory containers.Backend for tests.
// Error fields inject failures; Calls records every operation in order.
type FakeBackend struct {
	mu         sync.Mutex
	containers map[string]*FakeContainer
	images     map[string]bool
	nextID     int
	nextPort   int

	PingErr       error
	ListErr       error
	RemoveErr     map[string]error
	PullErr       error
	CreateErr     error
	StartErr      error
	NoPortBinding bool
	ExecFunc      func(id string, spec containers.ExecSpec) (io.ReadCloser, error)

	Calls []string
	Execs []containers.ExecSpec
}

// NewFakeBackend returns an empty runtime
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		containers: make(map[string]*FakeContainer),
		images:     make(map[string]bool),
		RemoveErr:  make(map[string]error),
		nextPort:   32768,
	}
}

// AddImage marks ref as present in the local image cache
func (f *FakeBackend) AddImage(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[ref] = true
}

// AddContainer registers an existing container by name
func (f *FakeBackend) AddContainer(name string, running bool) *FakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &FakeContainer{
		ID:      fmt.Sprintf("c%04d", f.nextID),
		Spec:    containers.Spec{Name: name},
		Running: running,
	}
	f.containers[name] = c
	return c
}

// Container returns the container named name, or nil
func (f *FakeBackend) Container(name string) *FakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers[name]
}

// Names returns the sorted names of all containers
func (f *FakeBackend) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.containers))
	for name := range f.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallCount returns how many recorded calls start with prefix
func (f *FakeBackend) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *FakeBackend) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeBackend) lookup(nameOrID string) (string, *FakeContainer) {
	if c, ok := f.containers[nameOrID]; ok {
		return nameOrID, c
	}
	for name, c := range f.containers {
		if c.ID == nameOrID {
			return name, c
		}
	}
	return "", nil
}

func (f *FakeBackend) Ping(ctx context.Context) error {
	return f.PingErr
}

func (f *FakeBackend) ListContainers(ctx context.Context, all bool) ([]containers.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	names := make([]string, 0, len(f.containers))
	for name := range f.containers {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []containers.Summary
	for _, name := range names {
		c := f.containers[name]
		if !all && !c.Running {
			continue
		}
		state := "exited"
		if c.Running {
			state = "running"
		}
		out = append(out, containers.Summary{
			ID:     c.ID,
			Names:  []string{"/" + name},
			State:  state,
			Labels: c.Spec.Labels,
		})
	}
	return out, nil
}

func (f *FakeBackend) RemoveContainer(ctx context.Context, nameOrID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove:" + nameOrID)
	if err := f.RemoveErr[nameOrID]; err != nil {
		return err
	}
	name, c := f.lookup(nameOrID)
	if c == nil {
		return fmt.Errorf("container %s: %w", nameOrID, containers.ErrNotFound)
	}
	delete(f.containers, name)
	return nil
}

func (f *FakeBackend) ImageExists(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("image-inspect:" + ref)
	return f.images[ref], nil
}

func (f *FakeBackend) PullImage(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pull:" + ref)
	if f.PullErr != nil {
		return f.PullErr
	}
	f.images[ref] = true
	return nil
}

func (f *FakeBackend) CreateContainer(ctx context.Context, spec containers.Spec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create:" + spec.Name)
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if _, exists := f.containers[spec.Name]; exists {
		return "", fmt.Errorf("conflict: container name %q is already in use", spec.Name)
	}
	if !f.images[spec.Image] {
		return "", fmt.Errorf("no such image: %s", spec.Image)
	}
	f.nextID++
	c := &FakeContainer{ID: fmt.Sprintf("c%04d", f.nextID), Spec: spec}
	f.containers[spec.Name] = c
	return c.ID, nil
}

func (f *FakeBackend) StartContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start:" + id)
	if f.StartErr != nil {
		return f.StartErr
	}
	_, c := f.lookup(id)
	if c == nil {
		return fmt.Errorf("container %s: %w", id, containers.ErrNotFound)
	}
	c.Running = true
	if !f.NoPortBinding && c.Spec.ContainerPort != "" {
		c.Port = strconv.Itoa(f.nextPort)
		f.nextPort++
	}
	return nil
}

func (f *FakeBackend) PublishedPort(ctx context.Context, id, containerPort string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("inspect:" + id)
	_, c := f.lookup(id)
	if c == nil {
		return "", fmt.Errorf("container %s: %w", id, containers.ErrNotFound)
	}
	if c.Spec.ContainerPort != containerPort {
		return "", nil
	}
	return c.Port, nil
}

func (f *FakeBackend) Exec(ctx context.Context, id string, spec containers.ExecSpec) (io.ReadCloser, error) {
	f.mu.Lock()
	f.record("exec:" + id + ":" + strings.Join(spec.Cmd, " "))
	f.Execs = append(f.Execs, spec)
	_, c := f.lookup(id)
	execFunc := f.ExecFunc
	f.mu.Unlock()

	if c == nil {
		return nil, fmt.Errorf("container %s: %w", id, containers.ErrNotFound)
	}
	if execFunc != nil {
		return execFunc(id, spec)
	}
	return io.NopCloser(strings.NewReader("")), nil
}

var _ containers.Backend = (*FakeBackend)(nil)
