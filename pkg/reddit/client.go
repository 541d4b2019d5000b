// Package reddit is the read-side client for the Reddit data API. Every
// call runs with the caller's own upstream access token; the gateway never
// holds Reddit credentials of its own beyond the OAuth app secret.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
)

// DefaultBaseURL is the authenticated Reddit API host.
const DefaultBaseURL = "https://oauth.reddit.com"

// maxResponseSize bounds API response bodies.
const maxResponseSize = 4 << 20

// Listing limits.
const (
	DefaultListingLimit = 10
	MaxListingLimit     = 100
)

// Client calls the Reddit data API. Calls are paced to one request per
// second with a small burst, which keeps the gateway inside Reddit's
// per-client quota.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API host. Used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a paced Reddit API client.
func NewClient(userAgent string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(1, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me returns the authenticated user's identity document.
func (c *Client) Me(ctx context.Context, creds mcp.Credentials) (json.RawMessage, error) {
	return c.get(ctx, creds, "/api/v1/me", nil)
}

// SubredditPosts returns a subreddit listing. sort must be one of hot, new,
// top, or rising; limit is clamped to MaxListingLimit.
func (c *Client) SubredditPosts(ctx context.Context, creds mcp.Credentials, subreddit, sort string, limit int) (json.RawMessage, error) {
	if subreddit == "" {
		return nil, errors.New("subreddit is required")
	}
	switch sort {
	case "":
		sort = "hot"
	case "hot", "new", "top", "rising":
	default:
		return nil, fmt.Errorf("unsupported sort %q", sort)
	}

	params := url.Values{"limit": {strconv.Itoa(clampLimit(limit))}}
	path := fmt.Sprintf("/r/%s/%s", url.PathEscape(subreddit), sort)
	return c.get(ctx, creds, path, params)
}

// PostComments returns the comment tree for a post in a subreddit.
func (c *Client) PostComments(ctx context.Context, creds mcp.Credentials, subreddit, postID string, limit int) (json.RawMessage, error) {
	if subreddit == "" || postID == "" {
		return nil, errors.New("subreddit and post id are required")
	}

	params := url.Values{"limit": {strconv.Itoa(clampLimit(limit))}}
	path := fmt.Sprintf("/r/%s/comments/%s", url.PathEscape(subreddit), url.PathEscape(postID))
	return c.get(ctx, creds, path, params)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListingLimit
	}
	if limit > MaxListingLimit {
		return MaxListingLimit
	}
	return limit
}

// get performs a paced GET with the caller's bearer. Non-2xx statuses are
// wrapped in mcp.ErrUpstreamAPI without echoing response bodies to callers.
func (c *Client) get(ctx context.Context, creds mcp.Credentials, path string, params url.Values) (json.RawMessage, error) {
	if creds.UpstreamAccessToken == "" {
		return nil, fmt.Errorf("%w: session has no upstream access token", mcp.ErrAuthRequired)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.UpstreamAccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", mcp.ErrUpstreamAPI, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", mcp.ErrUpstreamAPI)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warnw("reddit api call failed", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s returned %d", mcp.ErrUpstreamAPI, path, resp.StatusCode)
	}
	return body, nil
}
