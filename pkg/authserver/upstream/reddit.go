// Package upstream implements the OAuth 2.0 client side against Reddit:
// building the authorize redirect, exchanging and refreshing tokens, and
// resolving the authenticated user's identity.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/redditmcp/redditmcp/pkg/logger"
)

// Reddit endpoints. Authorization and token live on www.reddit.com; the
// identity API lives on oauth.reddit.com.
const (
	DefaultAuthorizationEndpoint = "https://www.reddit.com/api/v1/authorize"
	DefaultTokenEndpoint         = "https://www.reddit.com/api/v1/access_token"
	DefaultIdentityEndpoint      = "https://oauth.reddit.com/api/v1/me"
)

// maxResponseSize bounds upstream response bodies.
const maxResponseSize = 1 << 20

// tokenRequestTries is the total attempt count for token requests,
// including the first.
const tokenRequestTries = 3

// ErrUpstream wraps every failure talking to Reddit. Handlers surface it as
// the `upstream_error` OAuth code without leaking response bodies.
var ErrUpstream = errors.New("upstream_error")

// Tokens is the pair obtained from a code exchange or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}

// tokenExpirationBuffer accounts for clock skew and network latency when
// judging whether an upstream access token is still usable.
const tokenExpirationBuffer = 30 * time.Second

// IsExpired reports whether the access token has expired or will within the
// buffer period. Nil tokens count as expired.
func (t *Tokens) IsExpired() bool {
	if t == nil {
		return true
	}
	return time.Now().Add(tokenExpirationBuffer).After(t.ExpiresAt)
}

// HTTPClient is the subset of http.Client the provider needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the OAuth 2.0 client for Reddit. Token requests authenticate
// with HTTP Basic per Reddit's rules; every request carries the configured
// User-Agent because Reddit throttles default agents aggressively.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	userAgent    string

	authorizationEndpoint string
	tokenEndpoint         string
	identityEndpoint      string

	httpClient HTTPClient
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPClient) ClientOption {
	return func(p *Client) {
		p.httpClient = c
	}
}

// WithEndpoints overrides the Reddit endpoints. Used by tests.
func WithEndpoints(authorize, token, identity string) ClientOption {
	return func(p *Client) {
		p.authorizationEndpoint = authorize
		p.tokenEndpoint = token
		p.identityEndpoint = identity
	}
}

// NewClient creates a Reddit OAuth client.
func NewClient(clientID, clientSecret, redirectURI, userAgent string, opts ...ClientOption) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("upstream client credentials are required")
	}
	if redirectURI == "" {
		return nil, errors.New("redirect URI is required")
	}

	c := &Client{
		clientID:              clientID,
		clientSecret:          clientSecret,
		redirectURI:           redirectURI,
		userAgent:             userAgent,
		authorizationEndpoint: DefaultAuthorizationEndpoint,
		tokenEndpoint:         DefaultTokenEndpoint,
		identityEndpoint:      DefaultIdentityEndpoint,
		httpClient:            &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AuthorizationURL builds the Reddit authorize redirect. The state must
// already encode the pending-authorization key and nonce. duration=permanent
// asks Reddit for a refresh token.
func (c *Client) AuthorizationURL(state, scope string) (string, error) {
	if state == "" {
		return "", errors.New("state parameter is required")
	}
	if scope == "" {
		scope = "identity read"
	}

	params := url.Values{
		"response_type": {"code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {c.redirectURI},
		"state":         {state},
		"scope":         {scope},
		"duration":      {"permanent"},
	}
	return c.authorizationEndpoint + "?" + params.Encode(), nil
}

// ExchangeCode exchanges an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	params := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	}

	tokens, err := c.tokenRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	logger.Infow("upstream code exchange successful",
		"has_refresh_token", tokens.RefreshToken != "",
		"expires_at", tokens.ExpiresAt.Format(time.RFC3339),
	)
	return tokens, nil
}

// RefreshTokens exchanges a refresh token for a fresh pair. Reddit may omit
// the refresh token from the response; callers keep the old one in that case.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}

	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	tokens, err := c.tokenRequest(ctx, params)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}

	logger.Infow("upstream token refresh successful",
		"expires_at", tokens.ExpiresAt.Format(time.RFC3339),
	)
	return tokens, nil
}

// tokenRequest posts form-encoded params to the token endpoint with HTTP
// Basic client authentication, retrying transient failures.
func (c *Client) tokenRequest(ctx context.Context, params url.Values) (*Tokens, error) {
	operation := func() (*Tokens, error) {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.tokenEndpoint,
			strings.NewReader(params.Encode()),
		)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create token request: %w", err))
		}
		req.SetBasicAuth(c.clientID, c.clientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("token request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read token response: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			// Transient; worth a retry.
			return nil, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("token endpoint returned %d", resp.StatusCode))
		}
		return parseTokenResponse(body)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 250 * time.Millisecond

	tokens, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(tokenRequestTries),
		backoff.WithNotify(func(_ error, duration time.Duration) {
			logger.Debugw("retrying upstream token request", "after", duration)
		}),
	)
	if err != nil {
		logger.Warnw("upstream token request failed", "error", err)
		return nil, fmt.Errorf("%w: token request failed", ErrUpstream)
	}
	return tokens, nil
}

// parseTokenResponse decodes Reddit's token response body.
func parseTokenResponse(body []byte) (*Tokens, error) {
	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
		Error        string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode token response: %w", err))
	}
	if payload.Error != "" {
		return nil, backoff.Permanent(fmt.Errorf("token endpoint error: %s", payload.Error))
	}
	if payload.AccessToken == "" {
		return nil, backoff.Permanent(errors.New("token response missing access_token"))
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	return &Tokens{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
		Scope:        payload.Scope,
	}, nil
}

// IdentifyUser resolves the username behind an access token via the
// identity endpoint.
func (c *Client) IdentifyUser(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", errors.New("access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.identityEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: identity request failed", ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read identity response", ErrUpstream)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warnw("upstream identity request failed", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: identity endpoint returned %d", ErrUpstream, resp.StatusCode)
	}

	var identity struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &identity); err != nil {
		return "", fmt.Errorf("%w: failed to decode identity response", ErrUpstream)
	}
	if identity.Name == "" {
		return "", fmt.Errorf("%w: identity response missing name", ErrUpstream)
	}
	return identity.Name, nil
}
