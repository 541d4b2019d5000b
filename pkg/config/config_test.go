package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:               3000,
		IssuerURL:          "http://localhost:3000",
		RedditClientID:     "client-id",
		RedditClientSecret: "client-secret",
		RedditRedirectURI:  "http://localhost:3000/oauth/reddit/callback",
		JWTSecret:          []byte(strings.Repeat("s", 32)),
		UserAgent:          DefaultUserAgent,
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.RedditClientID = "" },
			wantErr: "REDDIT_CLIENT_ID",
		},
		{
			name:    "missing client secret",
			mutate:  func(c *Config) { c.RedditClientSecret = "" },
			wantErr: "REDDIT_CLIENT_SECRET",
		},
		{
			name:    "missing signing secret",
			mutate:  func(c *Config) { c.JWTSecret = nil },
			wantErr: "JWT_SECRET is required",
		},
		{
			name:    "short signing secret",
			mutate:  func(c *Config) { c.JWTSecret = []byte("too-short") },
			wantErr: "at least 32 bytes",
		},
		{
			name:    "relative issuer",
			mutate:  func(c *Config) { c.IssuerURL = "/not-absolute" },
			wantErr: "absolute URL",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.RateLimitRequests = 0 },
			wantErr: "RATE_LIMIT_REQUESTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDerivesDefaults(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "id")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("JWT_SECRET", strings.Repeat("k", 32))
	t.Setenv("ISSUER_URL", "")
	t.Setenv("REDDIT_REDIRECT_URI", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "http://localhost:3000", cfg.IssuerURL)
	assert.Equal(t, "http://localhost:3000/oauth/reddit/callback", cfg.RedditRedirectURI)
	assert.Equal(t, 100, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "")
	t.Setenv("REDDIT_CLIENT_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDDIT_CLIENT_ID")
}
