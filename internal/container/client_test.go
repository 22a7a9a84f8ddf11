package container

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
)

// TestResolve_PathContainment exercises the workspace-containment invariant
// without needing Docker: resolve must reject any path that would escape
// the handle's workspace root before a container is ever touched.
func TestResolve_PathContainment(t *testing.T) {
	h := &handle{workspaceRoot: "/workspace/acme/proj"}

	t.Run("plain relative path stays inside", func(t *testing.T) {
		resolved, err := resolve(h, "src/main.go")
		require.NoError(t, err)
		assert.Equal(t, "/workspace/acme/proj/src/main.go", resolved)
	})

	t.Run("workspace root itself is allowed", func(t *testing.T) {
		resolved, err := resolve(h, ".")
		require.NoError(t, err)
		assert.Equal(t, "/workspace/acme/proj", resolved)
	})

	t.Run("parent traversal is rejected", func(t *testing.T) {
		_, err := resolve(h, "../../etc/passwd")
		assert.ErrorIs(t, err, ErrOutOfWorkspace)
	})

	t.Run("deep parent traversal outside workspace is rejected", func(t *testing.T) {
		_, err := resolve(h, "../../../root/.ssh/id_rsa")
		assert.ErrorIs(t, err, ErrOutOfWorkspace)
	})
}

// requireDocker skips the test unless Docker-backed integration tests are
// explicitly enabled, matching the teacher's opt-in env var convention.
func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("COPILOT_TEST_DOCKER") != "true" {
		t.Skip("Docker integration tests disabled (set COPILOT_TEST_DOCKER=true to enable)")
	}
}

func TestClient_CreateExecCleanup_Integration(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()
	c := NewClient(common.NewSilentLogger())

	id, err := c.Create(ctx, "acme", "proj", "token", "main", "")
	require.NoError(t, err)
	defer c.Cleanup(ctx, id)

	require.NoError(t, c.WriteFile(ctx, id, "hello.txt", []byte("hi")))
	data, err := c.ReadFile(ctx, id, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	result, err := c.Exec(ctx, id, "echo", "ok")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestClient_OutOfWorkspacePath_RejectedBeforeContainerTouched(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()
	c := NewClient(common.NewSilentLogger())

	id, err := c.Create(ctx, "acme", "proj", "token", "main", "")
	require.NoError(t, err)
	defer c.Cleanup(ctx, id)

	_, err = c.ReadFile(ctx, id, "../../../etc/passwd")
	assert.ErrorIs(t, err, ErrOutOfWorkspace)
}
