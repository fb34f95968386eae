package containers

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

type dockerBackend struct {
	cli *client.Client
}

// NewDockerBackend connects to the Docker daemon at host, or the environment's
// DOCKER_HOST (default unix socket) when host is empty.
func NewDockerBackend(host string) (Backend, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &dockerBackend{cli: cli}, nil
}

func (d *dockerBackend) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	return err
}

func (d *dockerBackend) ListContainers(ctx context.Context, all bool) ([]Summary, error) {
	list, err := d.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(list))
	for _, c := range list {
		summaries = append(summaries, Summary{
			ID:     c.ID,
			Names:  c.Names,
			State:  c.State,
			Labels: c.Labels,
		})
	}
	return summaries, nil
}

func (d *dockerBackend) RemoveContainer(ctx context.Context, nameOrID string) error {
	err := d.cli.ContainerRemove(ctx, nameOrID, container.RemoveOptions{Force: true})
	if errdefs.IsNotFound(err) {
		return fmt.Errorf("container %s: %w", nameOrID, ErrNotFound)
	}
	return err
}

func (d *dockerBackend) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return true, nil
	}
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (d *dockerBackend) PullImage(ctx context.Context, ref string) error {
	stream, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer stream.Close()

	// Errors are reported in-band on the progress stream.
	return jsonmessage.DisplayJSONMessagesStream(stream, io.Discard, 0, false, nil)
}

func (d *dockerBackend) CreateContainer(ctx context.Context, spec Spec) (string, error) {
	port := nat.Port(spec.ContainerPort)

	binds := make([]string, 0, len(spec.Binds))
	for _, b := range spec.Binds {
		binds = append(binds, b.HostPath+":"+b.ContainerPath)
	}

	cfg := &container.Config{
		Image:  spec.Image,
		User:   spec.User,
		Cmd:    spec.Cmd,
		Labels: spec.Labels,
	}
	hostCfg := &container.HostConfig{
		NetworkMode:   container.NetworkMode(spec.Network),
		Binds:         binds,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyMode(spec.RestartPolicy)},
	}
	if spec.ContainerPort != "" {
		cfg.ExposedPorts = nat.PortSet{port: struct{}{}}
		// HostPort "0" lets the daemon pick a free port.
		hostCfg.PortBindings = nat.PortMap{port: []nat.PortBinding{{HostPort: "0"}}}
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (d *dockerBackend) StartContainer(ctx context.Context, id string) error {
	return d.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (d *dockerBackend) PublishedPort(ctx context.Context, id, containerPort string) (string, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("container %s: %w", id, ErrNotFound)
		}
		return "", err
	}
	if info.NetworkSettings == nil {
		return "", nil
	}
	for _, binding := range info.NetworkSettings.Ports[nat.Port(containerPort)] {
		if binding.HostPort != "" {
			return binding.HostPort, nil
		}
	}
	return "", nil
}

func (d *dockerBackend) Exec(ctx context.Context, id string, spec ExecSpec) (io.ReadCloser, error) {
	created, err := d.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		Tty:          spec.Tty,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("container %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	resp, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{Tty: spec.Tty})
	if err != nil {
		return nil, err
	}

	if spec.Tty {
		return &hijackedReader{resp: resp}, nil
	}

	// Without a TTY stdout and stderr arrive multiplexed.
	pr, pw := io.Pipe()
	go func() {
		_, copyErr := stdcopy.StdCopy(pw, pw, resp.Reader)
		pw.CloseWithError(copyErr)
	}()
	return &demuxReader{PipeReader: pr, resp: resp}, nil
}

type hijackedReader struct {
	resp types.HijackedResponse
}

func (h *hijackedReader) Read(p []byte) (int, error) {
	return h.resp.Reader.Read(p)
}

func (h *hijackedReader) Close() error {
	h.resp.Close()
	return nil
}

type demuxReader struct {
	*io.PipeReader
	resp types.HijackedResponse
}

func (d *demuxReader) Close() error {
	d.resp.Close()
	return d.PipeReader.Close()
}
