package repo

import (
	"context"
	"fmt"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// GitHub looks up repository metadata, waiting out API rate limits.
type GitHub struct {
	client *github.Client
}

// NewGitHub creates a client; an empty token gives anonymous access.
func NewGitHub(token string) (*GitHub, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}
	client := github.NewClient(rateLimiter)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHub{client: client}, nil
}

// DefaultBranch returns the default branch of owner/name.
func (g *GitHub) DefaultBranch(ctx context.Context, owner, name string) (string, error) {
	r, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}
	return r.GetDefaultBranch(), nil
}

// Description returns the repository description, possibly empty.
func (g *GitHub) Description(ctx context.Context, owner, name string) (string, error) {
	r, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}
	return r.GetDescription(), nil
}
