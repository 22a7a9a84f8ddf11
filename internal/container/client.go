// Package container implements ContainerClient: the executor handler's only
// path to an isolated build environment, backed by testcontainers-go.
// Grounded on the teacher's Docker test-harness (tests/common/containers.go)
// generalized from a throwaway test fixture into a long-lived, per-job
// container handle with the workspace-path-containment invariant spec §6
// requires: every path argument is resolved under the handle's workspace
// root before the container is touched, mirroring the teacher's
// scoped-acquisition-with-guaranteed-cleanup idiom (spec §9's design note on
// "scoped-resource containers").
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
)

// ErrOutOfWorkspace is returned, before any container I/O happens, when a
// caller-supplied path would resolve outside the handle's workspace root.
var ErrOutOfWorkspace = errors.New("container: path escapes workspace root")

const defaultImage = "golang:1.25-alpine"

// handle tracks one provisioned container and the workspace root every path
// argument for it is resolved against.
type handle struct {
	container     testcontainers.Container
	workspaceRoot string
}

// Client is the testcontainers-go-backed ContainerClient implementation.
type Client struct {
	mu      sync.Mutex
	handles map[string]*handle
	logger  *common.Logger
	nextID  int64
}

var _ interfaces.ContainerClient = (*Client)(nil)

// NewClient returns an empty Client.
func NewClient(logger *common.Logger) *Client {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Client{handles: make(map[string]*handle), logger: logger}
}

// Create provisions a container for owner/repo on branch, returning an
// opaque handle id scoped to a dedicated workspace directory inside it.
func (c *Client) Create(ctx context.Context, owner, repo, token, branch, imageType string) (string, error) {
	image := imageType
	if image == "" {
		image = defaultImage
	}

	req := testcontainers.ContainerRequest{
		Image:      image,
		Cmd:        []string{"sleep", "infinity"},
		WaitingFor: wait.ForExec([]string{"true"}).WithStartupTimeout(60 * time.Second),
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("provision container for %s/%s: %w", owner, repo, err)
	}

	workspaceRoot := fmt.Sprintf("/workspace/%s/%s", owner, repo)
	if _, _, err := ctr.Exec(ctx, []string{"mkdir", "-p", workspaceRoot}); err != nil {
		_ = ctr.Terminate(ctx)
		return "", fmt.Errorf("initialize workspace: %w", err)
	}

	c.mu.Lock()
	c.nextID++
	id := fmt.Sprintf("ctr-%d", c.nextID)
	c.handles[id] = &handle{container: ctr, workspaceRoot: workspaceRoot}
	c.mu.Unlock()

	c.logger.Info().Str("handle", id).Str("repo", owner+"/"+repo).Str("branch", branch).Msg("container provisioned")
	return id, nil
}

// resolve joins relPath onto h's workspace root and rejects anything that
// escapes it, before the path ever reaches the container.
func resolve(h *handle, relPath string) (string, error) {
	joined := filepath.Join(h.workspaceRoot, relPath)
	cleanedRoot := filepath.Clean(h.workspaceRoot)
	if joined != cleanedRoot && !strings.HasPrefix(joined, cleanedRoot+"/") {
		return "", ErrOutOfWorkspace
	}
	return joined, nil
}

func (c *Client) get(id string) (*handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[id]
	if !ok {
		return nil, fmt.Errorf("unknown container handle %q", id)
	}
	return h, nil
}

// Exec runs cmd with args inside the container identified by id.
func (c *Client) Exec(ctx context.Context, id string, cmd string, args ...string) (interfaces.ExecResult, error) {
	h, err := c.get(id)
	if err != nil {
		return interfaces.ExecResult{}, err
	}

	start := time.Now()
	full := append([]string{cmd}, args...)
	exitCode, reader, err := h.container.Exec(ctx, full)
	if err != nil {
		return interfaces.ExecResult{}, fmt.Errorf("exec %s: %w", cmd, err)
	}

	var out bytes.Buffer
	if reader != nil {
		_, _ = io.Copy(&out, reader)
	}

	return interfaces.ExecResult{
		ExitCode: exitCode,
		Stdout:   out.String(),
		Duration: time.Since(start),
	}, nil
}

// ReadFile reads path (relative to the handle's workspace root) from the
// container.
func (c *Client) ReadFile(ctx context.Context, id, path string) ([]byte, error) {
	h, err := c.get(id)
	if err != nil {
		return nil, err
	}
	resolved, err := resolve(h, path)
	if err != nil {
		return nil, err
	}

	reader, err := h.container.CopyFileFromContainer(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// WriteFile writes data to path (relative to the handle's workspace root)
// inside the container.
func (c *Client) WriteFile(ctx context.Context, id, path string, data []byte) error {
	h, err := c.get(id)
	if err != nil {
		return err
	}
	resolved, err := resolve(h, path)
	if err != nil {
		return err
	}
	if err := h.container.CopyToContainer(ctx, data, resolved, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// MakeDir creates path (relative to the handle's workspace root), including
// parents, inside the container.
func (c *Client) MakeDir(ctx context.Context, id, path string) error {
	h, err := c.get(id)
	if err != nil {
		return err
	}
	resolved, err := resolve(h, path)
	if err != nil {
		return err
	}
	_, _, err = h.container.Exec(ctx, []string{"mkdir", "-p", resolved})
	return err
}

// DirExists reports whether path (relative to the handle's workspace root)
// exists and is a directory inside the container.
func (c *Client) DirExists(ctx context.Context, id, path string) (bool, error) {
	h, err := c.get(id)
	if err != nil {
		return false, err
	}
	resolved, err := resolve(h, path)
	if err != nil {
		return false, err
	}
	exitCode, _, err := h.container.Exec(ctx, []string{"test", "-d", resolved})
	if err != nil {
		return false, err
	}
	return exitCode == 0, nil
}

// Move renames src to dst, both relative to the handle's workspace root.
func (c *Client) Move(ctx context.Context, id, src, dst string) error {
	return c.execOnPair(ctx, id, src, dst, "mv")
}

// Copy duplicates src at dst, both relative to the handle's workspace root.
func (c *Client) Copy(ctx context.Context, id, src, dst string) error {
	return c.execOnPair(ctx, id, src, dst, "cp", "-r")
}

func (c *Client) execOnPair(ctx context.Context, id, src, dst, bin string, flags ...string) error {
	h, err := c.get(id)
	if err != nil {
		return err
	}
	resolvedSrc, err := resolve(h, src)
	if err != nil {
		return err
	}
	resolvedDst, err := resolve(h, dst)
	if err != nil {
		return err
	}
	cmd := append(append([]string{bin}, flags...), resolvedSrc, resolvedDst)
	_, _, err = h.container.Exec(ctx, cmd)
	return err
}

// Delete removes path (relative to the handle's workspace root).
func (c *Client) Delete(ctx context.Context, id, path string) error {
	h, err := c.get(id)
	if err != nil {
		return err
	}
	resolved, err := resolve(h, path)
	if err != nil {
		return err
	}
	_, _, err = h.container.Exec(ctx, []string{"rm", "-rf", resolved})
	return err
}

// List returns the entries of path (relative to the handle's workspace
// root).
func (c *Client) List(ctx context.Context, id, path string) ([]string, error) {
	h, err := c.get(id)
	if err != nil {
		return nil, err
	}
	resolved, err := resolve(h, path)
	if err != nil {
		return nil, err
	}
	_, reader, err := h.container.Exec(ctx, []string{"ls", "-1", resolved})
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if reader != nil {
		_, _ = io.Copy(&out, reader)
	}
	var entries []string
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			entries = append(entries, line)
		}
	}
	return entries, nil
}

// CommitAndPush is out of scope for the container-isolation boundary itself
// (it is the platform-API adapter's concern); this runs the equivalent git
// commands inside the container for the single-repo workflow where the
// container already holds committer credentials.
func (c *Client) CommitAndPush(ctx context.Context, id, message, branch string) error {
	h, err := c.get(id)
	if err != nil {
		return err
	}
	commands := [][]string{
		{"git", "-C", h.workspaceRoot, "add", "-A"},
		{"git", "-C", h.workspaceRoot, "commit", "-m", message},
		{"git", "-C", h.workspaceRoot, "push", "origin", branch},
	}
	for _, cmd := range commands {
		if _, _, err := h.container.Exec(ctx, cmd); err != nil {
			return fmt.Errorf("%s: %w", strings.Join(cmd, " "), err)
		}
	}
	return nil
}

// Cleanup terminates the container backing id and releases the handle.
func (c *Client) Cleanup(ctx context.Context, id string) error {
	c.mu.Lock()
	h, ok := c.handles[id]
	if ok {
		delete(c.handles, id)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return h.container.Terminate(ctx)
}
