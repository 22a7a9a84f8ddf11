package platform

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
)

func TestStubClient_CreateAndListPullRequests(t *testing.T) {
	c := NewStubClient()
	ctx := context.Background()

	pr, err := c.CreatePullRequest(ctx, interfaces.CreatePullRequestRequest{Owner: "acme", Repo: "proj", Title: "fix bug", Head: "fix", Base: "main"})
	require.NoError(t, err)
	assert.Equal(t, 1, pr.Number)
	assert.Equal(t, "open", pr.State)

	list, err := c.ListPullRequests(ctx, "acme", "proj")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fix bug", list[0].Title)
}

func TestStubClient_UpdatePullRequest_AppliesNonEmptyFields(t *testing.T) {
	c := NewStubClient()
	ctx := context.Background()
	pr, err := c.CreatePullRequest(ctx, interfaces.CreatePullRequestRequest{Owner: "acme", Repo: "proj", Title: "initial"})
	require.NoError(t, err)

	updated, err := c.UpdatePullRequest(ctx, "acme", "proj", pr.Number, interfaces.UpdatePullRequestRequest{State: "closed"})
	require.NoError(t, err)
	assert.Equal(t, "closed", updated.State)
	assert.Equal(t, "initial", updated.Title)
}

func TestStubClient_UpdatePullRequest_UnknownNumber_Errors(t *testing.T) {
	c := NewStubClient()
	_, err := c.UpdatePullRequest(context.Background(), "acme", "proj", 999, interfaces.UpdatePullRequestRequest{})
	assert.Error(t, err)
}

func TestStubClient_RateLimiter_BlocksUntilContextCancelled(t *testing.T) {
	c := NewStubClient(WithRateLimiter(rate.NewLimiter(rate.Limit(0), 1)))

	ctx := context.Background()
	_, err := c.GetRepository(ctx, "acme", "proj")
	require.NoError(t, err)

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetRepository(cancelCtx, "acme", "proj")
	assert.Error(t, err)
}

func generateTestKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(key)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
	return key, pemBytes
}

func TestMintAppJWT_ProducesValidatableToken(t *testing.T) {
	key, pemBytes := generateTestKey(t)
	parsed, err := ParsePrivateKey(pemBytes)
	require.NoError(t, err)

	token, err := MintAppJWT(AppCredentials{AppID: "12345", PrivateKey: parsed}, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateAppJWT(token, &key.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "12345", claims["iss"])
}

func TestValidateAppJWT_WrongKey_Fails(t *testing.T) {
	_, pemBytes := generateTestKey(t)
	otherKey, _ := generateTestKey(t)
	parsed, err := ParsePrivateKey(pemBytes)
	require.NoError(t, err)

	token, err := MintAppJWT(AppCredentials{AppID: "1", PrivateKey: parsed}, time.Now())
	require.NoError(t, err)

	_, err = ValidateAppJWT(token, &otherKey.PublicKey)
	assert.Error(t, err)
}
