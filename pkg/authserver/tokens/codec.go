// Package tokens implements the bearer-token codec. Tokens are signed
// envelopes that carry the caller's upstream credentials; the server keeps
// no per-token state beyond the refresh-token record.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerTokenLifetime matches the nominal upstream access-token lifetime.
const BearerTokenLifetime = 24 * time.Hour

// ErrInvalidToken is returned on any signature or claim mismatch. Callers
// surface it as the OAuth `invalid_token` code without the wrapped cause.
var ErrInvalidToken = errors.New("invalid_token")

// Claims is the bearer-token payload.
type Claims struct {
	UpstreamAccessToken  string `json:"upstream_access_token"`
	UpstreamRefreshToken string `json:"upstream_refresh_token,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies bearer tokens with a symmetric secret.
// It performs no network or storage operations.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
}

// NewCodec creates a Codec. The secret must already be validated by config
// (>= 32 bytes); issuer and audience come from config and are checked on
// every verification.
func NewCodec(secret []byte, issuer, audience string) *Codec {
	return &Codec{secret: secret, issuer: issuer, audience: audience}
}

// Mint produces a signed bearer token for the given upstream user.
// The token expires BearerTokenLifetime after now.
func (c *Codec) Mint(subject, upstreamAccess, upstreamRefresh string, now time.Time) (string, error) {
	claims := Claims{
		UpstreamAccessToken:  upstreamAccess,
		UpstreamRefreshToken: upstreamRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(BearerTokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign bearer token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, validity window, audience, and issuer as of now.
// Any mismatch returns an error wrapping ErrInvalidToken.
func (c *Codec) Verify(tokenString string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.UpstreamAccessToken == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalidToken)
	}
	return claims, nil
}
