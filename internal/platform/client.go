package platform

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
)

// StubClient is the interface-only PlatformClient: it exercises the
// collaborator contract (spec §6) without calling a real hosting platform,
// standing in for the out-of-scope real adapter. Handlers depend only on
// interfaces.PlatformClient, so a production adapter can replace StubClient
// without the handlers changing.
type StubClient struct {
	mu       sync.Mutex
	prs      map[string][]interfaces.PullRequestInfo
	nextPRNo int64
	limiter  *rate.Limiter
}

var _ interfaces.PlatformClient = (*StubClient)(nil)

// Option configures optional StubClient behavior.
type Option func(*StubClient)

// WithRateLimiter throttles every exported method through a token-bucket
// limiter, so a burst of platform-API calls (or a flaky upstream) cannot
// starve the worker pool the calling job handlers run on.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *StubClient) { c.limiter = limiter }
}

// NewStubClient returns an empty StubClient.
func NewStubClient(opts ...Option) *StubClient {
	c := &StubClient{prs: make(map[string][]interfaces.PullRequestInfo)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func repoKey(owner, repo string) string { return owner + "/" + repo }

// acquire blocks until the rate limiter admits one call, or returns early if
// ctx is cancelled first. A nil limiter never blocks.
func (c *StubClient) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// GetRepository returns a RepositoryInfo with a conventional "main" default
// branch; a real adapter would query the hosting platform.
func (c *StubClient) GetRepository(ctx context.Context, owner, repo string) (interfaces.RepositoryInfo, error) {
	if err := c.acquire(ctx); err != nil {
		return interfaces.RepositoryInfo{}, err
	}
	return interfaces.RepositoryInfo{Owner: owner, Name: repo, DefaultBranch: "main"}, nil
}

// GetReference returns a deterministic placeholder sha for ref.
func (c *StubClient) GetReference(ctx context.Context, owner, repo, ref string) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha-%s-%s-%s", owner, repo, ref), nil
}

// CreateReference is a no-op that always succeeds.
func (c *StubClient) CreateReference(ctx context.Context, owner, repo, ref, sha string) error {
	return c.acquire(ctx)
}

// CreatePullRequest records req and returns an opened PullRequestInfo with a
// monotonically increasing number.
func (c *StubClient) CreatePullRequest(ctx context.Context, req interfaces.CreatePullRequestRequest) (interfaces.PullRequestInfo, error) {
	if err := c.acquire(ctx); err != nil {
		return interfaces.PullRequestInfo{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	number := int(atomic.AddInt64(&c.nextPRNo, 1))
	pr := interfaces.PullRequestInfo{
		Number: number,
		Title:  req.Title,
		State:  "open",
		URL:    fmt.Sprintf("https://example.invalid/%s/%s/pull/%d", req.Owner, req.Repo, number),
	}
	key := repoKey(req.Owner, req.Repo)
	c.prs[key] = append(c.prs[key], pr)
	return pr, nil
}

// UpdatePullRequest applies non-empty fields of req to the matching stored
// pull request.
func (c *StubClient) UpdatePullRequest(ctx context.Context, owner, repo string, number int, req interfaces.UpdatePullRequestRequest) (interfaces.PullRequestInfo, error) {
	if err := c.acquire(ctx); err != nil {
		return interfaces.PullRequestInfo{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := repoKey(owner, repo)
	for i, pr := range c.prs[key] {
		if pr.Number != number {
			continue
		}
		if req.Title != "" {
			pr.Title = req.Title
		}
		if req.State != "" {
			pr.State = req.State
		}
		c.prs[key][i] = pr
		return pr, nil
	}
	return interfaces.PullRequestInfo{}, fmt.Errorf("pull request %s/%s#%d not found", owner, repo, number)
}

// ListPullRequests returns the pull requests created through this client for
// owner/repo.
func (c *StubClient) ListPullRequests(ctx context.Context, owner, repo string) ([]interfaces.PullRequestInfo, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interfaces.PullRequestInfo{}, c.prs[repoKey(owner, repo)]...), nil
}

// CreateIssueComment is a no-op that always succeeds.
func (c *StubClient) CreateIssueComment(ctx context.Context, owner, repo string, issueNumber int, body string) error {
	return c.acquire(ctx)
}
