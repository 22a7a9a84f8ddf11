package interfaces

import (
	"context"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// JobHandler is the contract every job type registers against the
// Dispatcher's handler registry. Execute is invoked at most once per
// attempt; re-invocation happens only via queue re-enqueue after a Retried
// transition.
type JobHandler interface {
	// Type returns the job type string this handler is registered under.
	Type() string
	// Execute runs one attempt of the job. ctx carries the per-job timeout
	// and is cancelled on shutdown or CancelJob.
	Execute(ctx context.Context, job *models.Job) (models.JobResult, error)
}

// PlatformClient is the narrow repository-hosting-platform surface used by
// handlers, not by the core. Every call is audited via
// AuditLog.LogPlatformApiCall by the caller.
type PlatformClient interface {
	GetRepository(ctx context.Context, owner, repo string) (RepositoryInfo, error)
	GetReference(ctx context.Context, owner, repo, ref string) (string, error)
	CreateReference(ctx context.Context, owner, repo, ref, sha string) error
	CreatePullRequest(ctx context.Context, req CreatePullRequestRequest) (PullRequestInfo, error)
	UpdatePullRequest(ctx context.Context, owner, repo string, number int, req UpdatePullRequestRequest) (PullRequestInfo, error)
	ListPullRequests(ctx context.Context, owner, repo string) ([]PullRequestInfo, error)
	CreateIssueComment(ctx context.Context, owner, repo string, issueNumber int, body string) error
}

// RepositoryInfo is the subset of a repository's metadata the core cares about.
type RepositoryInfo struct {
	Owner         string
	Name          string
	DefaultBranch string
}

// CreatePullRequestRequest is the input to PlatformClient.CreatePullRequest.
type CreatePullRequestRequest struct {
	Owner string
	Repo  string
	Title string
	Head  string
	Base  string
	Body  string
	Draft bool
}

// UpdatePullRequestRequest is the partial update accepted by
// PlatformClient.UpdatePullRequest; empty fields are left unchanged.
type UpdatePullRequestRequest struct {
	Title string
	Body  string
	State string
}

// PullRequestInfo is the subset of pull request metadata handlers observe.
type PullRequestInfo struct {
	Number int
	Title  string
	State  string
	URL    string
}

// ContainerClient is the executor handler's only path to an isolated build
// environment. Every file path accepted by an implementation is relative and
// must be resolved under the workspace root; any path that escapes the
// workspace MUST return ErrOutOfWorkspace before the container is touched.
type ContainerClient interface {
	// Create provisions a container for owner/repo on branch, authenticated
	// with token, optionally selecting imageType. It returns an opaque
	// handle id.
	Create(ctx context.Context, owner, repo, token, branch, imageType string) (string, error)
	Exec(ctx context.Context, id string, cmd string, args ...string) (ExecResult, error)
	ReadFile(ctx context.Context, id, path string) ([]byte, error)
	WriteFile(ctx context.Context, id, path string, data []byte) error
	MakeDir(ctx context.Context, id, path string) error
	DirExists(ctx context.Context, id, path string) (bool, error)
	Move(ctx context.Context, id, src, dst string) error
	Copy(ctx context.Context, id, src, dst string) error
	Delete(ctx context.Context, id, path string) error
	List(ctx context.Context, id, path string) ([]string, error)
	CommitAndPush(ctx context.Context, id, message, branch string) error
	Cleanup(ctx context.Context, id string) error
}

// ExecResult is the outcome of ContainerClient.Exec.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}
