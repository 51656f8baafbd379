// Package ghclient provides the pull-request detail transports: a GraphQL
// bulk fetcher, a go-github single fetcher used as its fallback, and the
// orchestrator that drives both with per-repository fan-out.
package ghclient

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/hal/prflow/internal/log"
	"golang.org/x/oauth2"
)

// rateLimitTransport wraps an http.RoundTripper to handle GitHub rate limits
type rateLimitTransport struct {
	base http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Check if we're already rate limited before making the request
	if globalRateLimitState.IsLimited() {
		return nil, ErrRateLimited
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	// Parse and update rate limit state from response headers
	remaining, limit, resetAt := parseRateLimitHeaders(resp)
	if remaining >= 0 && limit > 0 {
		globalRateLimitState.Update(remaining, limit, resetAt)
	}

	if remaining <= RateLimitLowWatermark && remaining > 0 {
		log.Debug("rate limit low", "remaining", remaining, "resets_at", resetAt.Format(time.RFC3339))
	}

	// Handle rate limit responses (403 with rate limit exceeded or 429)
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.StatusCode == http.StatusTooManyRequests {
			globalRateLimitState.SetLimited(true, resetAt)
			_ = resp.Body.Close()
			return nil, ErrRateLimited
		}
	}

	return resp, err
}

// parseRateLimitHeaders extracts rate limit info from response headers.
func parseRateLimitHeaders(resp *http.Response) (remaining, limit int, resetAt time.Time) {
	remaining = -1
	limit = -1

	if remainingStr := resp.Header.Get("X-RateLimit-Remaining"); remainingStr != "" {
		if rem, err := strconv.Atoi(remainingStr); err == nil {
			remaining = rem
		}
	}

	if limitStr := resp.Header.Get("X-RateLimit-Limit"); limitStr != "" {
		if lim, err := strconv.Atoi(limitStr); err == nil {
			limit = lim
		}
	}

	if resetStr := resp.Header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetTime, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			resetAt = time.Unix(resetTime, 0)
		}
	}

	return remaining, limit, resetAt
}

// Client wraps the GitHub API clients (REST via go-github, GraphQL via a
// pooled HTTP client). Both share the rate-limit-aware transport.
type Client struct {
	rest       *gh.Client
	httpClient *http.Client
	// token is intentionally unexported. NEVER add String(), MarshalJSON(),
	// or any method that could expose this value in logs or serialized output.
	token string
}

// NewClient creates a new GitHub client using a personal access token.
func NewClient(ctx context.Context, token string) (*Client, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("GitHub token not provided. Set the GITHUB_TOKEN environment variable")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	// Wrap transport with rate limit handling
	tc.Transport = &rateLimitTransport{
		base: tc.Transport,
	}

	return &Client{
		rest:       gh.NewClient(tc),
		httpClient: tc,
		token:      token,
	}, nil
}

// RateLimits fetches the current GitHub API rate limit status.
func (c *Client) RateLimits(ctx context.Context) (*gh.RateLimits, error) {
	limits, _, err := c.rest.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limits: %w", err)
	}
	return limits, nil
}
