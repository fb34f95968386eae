package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"localclaw/internal/containers"

	"github.com/spf13/afero"
)

const (
	configDirName    = ".openclaw"
	workspaceDirName = "workspace"
	configFileName   = "openclaw.json"

	containerConfigPath    = "/root/.openclaw"
	containerWorkspacePath = "/root/openclaw/workspace"
)

// AgentFS owns the per-agent host directory tree:
// <root>/<agentId>/{.openclaw/{openclaw.json, credentials/whatsapp/default}, workspace}
type AgentFS interface {
	// Prepare creates the directory tree if missing
	Prepare(agentID string) error
	WriteConfig(agentID string, doc []byte) error
	// Remove deletes the agent directory recursively; a missing directory is not an error
	Remove(agentID string) error
	// List returns the names of all agent directories under the root
	List() ([]string, error)
	// Binds returns the mounts for agentID as seen by the container daemon
	Binds(agentID string) []containers.Bind
}

type agentFS struct {
	fs       afero.Fs
	root     string
	hostRoot string
}

// NewAgentFS returns an AgentFS writing under root on fs. hostRoot is the same
// directory as the container daemon sees it.
func NewAgentFS(fs afero.Fs, root, hostRoot string) AgentFS {
	if hostRoot == "" {
		hostRoot = root
	}
	return &agentFS{fs: fs, root: root, hostRoot: hostRoot}
}

// validSegment rejects ids that could escape the agents root
func validSegment(agentID string) error {
	if agentID == "" || agentID == "." || agentID == ".." ||
		strings.ContainsAny(agentID, `/\`) || strings.ContainsRune(agentID, 0) {
		return fmt.Errorf("invalid agent id %q", agentID)
	}
	return nil
}

func (a *agentFS) dir(agentID string) string {
	return filepath.Join(a.root, agentID)
}

func (a *agentFS) Prepare(agentID string) error {
	if err := validSegment(agentID); err != nil {
		return err
	}
	dirs := []string{
		filepath.Join(a.dir(agentID), configDirName, "credentials", "whatsapp", "default"),
		filepath.Join(a.dir(agentID), workspaceDirName),
	}
	for _, d := range dirs {
		if err := a.fs.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}

func (a *agentFS) WriteConfig(agentID string, doc []byte) error {
	if err := validSegment(agentID); err != nil {
		return err
	}
	path := filepath.Join(a.dir(agentID), configDirName, configFileName)
	if err := afero.WriteFile(a.fs, path, doc, 0o600); err != nil {
		return fmt.Errorf("failed to write agent config: %w", err)
	}
	return nil
}

func (a *agentFS) Remove(agentID string) error {
	if err := validSegment(agentID); err != nil {
		return err
	}
	if err := a.fs.RemoveAll(a.dir(agentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove agent directory: %w", err)
	}
	return nil
}

func (a *agentFS) List() ([]string, error) {
	entries, err := afero.ReadDir(a.fs, a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (a *agentFS) Binds(agentID string) []containers.Bind {
	base := filepath.Join(a.hostRoot, agentID)
	return []containers.Bind{
		{HostPath: filepath.Join(base, configDirName), ContainerPath: containerConfigPath},
		{HostPath: filepath.Join(base, workspaceDirName), ContainerPath: containerWorkspacePath},
	}
}
