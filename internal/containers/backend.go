package containers

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned when a container or image does not exist
var ErrNotFound = errors.New("not found")

// Summary is one entry of a container listing
type Summary struct {
	ID     string
	Names  []string
	State  string
	Labels map[string]string
}

// Name returns the primary container name without the leading slash the daemon reports.
func (s Summary) Name() string {
	if len(s.Names) == 0 {
		return ""
	}
	return strings.TrimPrefix(s.Names[0], "/")
}

// Bind mounts HostPath into the container at ContainerPath
type Bind struct {
	HostPath      string
	ContainerPath string
}

// Spec describes a container to create
type Spec struct {
	Name          string
	Image         string
	User          string
	Cmd           []string
	Labels        map[string]string
	Network       string
	Binds         []Bind
	ContainerPort string // e.g. "18789/tcp", published on a daemon-assigned host port
	RestartPolicy string
}

// ExecSpec describes a command run inside a running container
type ExecSpec struct {
	Cmd []string
	Env []string
	Tty bool
}

// Backend is the container runtime capability the orchestrator depends on.
// Implementations must be safe for concurrent use.
type Backend interface {
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context, all bool) ([]Summary, error)
	// RemoveContainer force-removes a container, stopping it first if running.
	RemoveContainer(ctx context.Context, nameOrID string) error
	ImageExists(ctx context.Context, ref string) (bool, error)
	// PullImage blocks until the pull stream signals completion or error.
	PullImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, spec Spec) (string, error)
	StartContainer(ctx context.Context, id string) error
	// PublishedPort returns the host port bound to containerPort, or "" when unbound.
	PublishedPort(ctx context.Context, id, containerPort string) (string, error)
	// Exec starts cmd in the container and returns its combined output.
	// Closing the reader detaches from the session.
	Exec(ctx context.Context, id string, spec ExecSpec) (io.ReadCloser, error)
}
