// Package config loads and validates the process configuration from the
// environment. The resulting Config is immutable after startup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinSigningSecretLength is the minimum length in bytes for the token
// signing secret. HS256 keys shorter than the hash output weaken the MAC.
const MinSigningSecretLength = 32

// DefaultUserAgent identifies the gateway against the Reddit API when no
// override is configured. Reddit requires a descriptive User-Agent.
const DefaultUserAgent = "redditmcp-gateway/1.0"

// Config holds the validated process configuration.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port int

	// IssuerURL is the absolute base URL of this server. It is used as the
	// OAuth issuer, as the bearer token audience, and to derive endpoint
	// URLs in discovery documents.
	IssuerURL string

	// RedditClientID and RedditClientSecret authenticate this server
	// against the Reddit OAuth token endpoint.
	RedditClientID     string
	RedditClientSecret string

	// RedditRedirectURI is the callback URL registered with Reddit.
	RedditRedirectURI string

	// JWTSecret signs bearer tokens (HS256).
	JWTSecret []byte

	// UserAgent is sent on every upstream request.
	UserAgent string

	// RateLimitRequests is the per-IP request ceiling per window.
	RateLimitRequests int

	// RateLimitWindow is the fixed rate-limit window.
	RateLimitWindow time.Duration
}

// Load reads configuration from the environment and validates it.
// Missing required variables are a fatal startup error.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 3000)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("USER_AGENT", DefaultUserAgent)

	cfg := &Config{
		Port:               v.GetInt("PORT"),
		IssuerURL:          strings.TrimSuffix(v.GetString("ISSUER_URL"), "/"),
		RedditClientID:     v.GetString("REDDIT_CLIENT_ID"),
		RedditClientSecret: v.GetString("REDDIT_CLIENT_SECRET"),
		RedditRedirectURI:  v.GetString("REDDIT_REDIRECT_URI"),
		JWTSecret:          []byte(v.GetString("JWT_SECRET")),
		UserAgent:          v.GetString("USER_AGENT"),
		RateLimitRequests:  v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindow:    time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
	}

	if cfg.IssuerURL == "" {
		cfg.IssuerURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.RedditRedirectURI == "" {
		cfg.RedditRedirectURI = cfg.IssuerURL + "/oauth/reddit/callback"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	var errs []error

	if c.RedditClientID == "" {
		errs = append(errs, errors.New("REDDIT_CLIENT_ID is required"))
	}
	if c.RedditClientSecret == "" {
		errs = append(errs, errors.New("REDDIT_CLIENT_SECRET is required"))
	}
	if len(c.JWTSecret) == 0 {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < MinSigningSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d",
			MinSigningSecretLength, len(c.JWTSecret)))
	}

	if u, err := url.Parse(c.IssuerURL); err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Errorf("ISSUER_URL must be an absolute URL, got %q", c.IssuerURL))
	}

	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW_SECONDS must be positive"))
	}

	return errors.Join(errs...)
}
