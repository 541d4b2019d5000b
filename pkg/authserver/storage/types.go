// Package storage provides the in-memory state tables for the OAuth flow:
// pending authorizations, one-shot authorization codes, and refresh tokens.
// All state is process-local and lost on restart by design.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Row lifetimes.
const (
	// DefaultPendingAuthorizationTTL bounds the window between the authorize
	// redirect and the upstream callback.
	DefaultPendingAuthorizationTTL = 10 * time.Minute

	// DefaultAuthCodeTTL bounds the window between the upstream callback and
	// the token exchange.
	DefaultAuthCodeTTL = 10 * time.Minute

	// DefaultRefreshTokenTTL is the refresh-token lifetime.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// DefaultSweepInterval is how often the background sweeper visits the
	// tables.
	DefaultSweepInterval = time.Minute

	// DefaultMaxEntriesPerTable bounds each table to prevent memory
	// amplification under abuse.
	DefaultMaxEntriesPerTable = 10_000
)

// Sentinel errors returned by store operations.
var (
	ErrNotFound = errors.New("not found")
	ErrExpired  = errors.New("expired")
)

// PendingAuthorization is created when a caller hits the authorize endpoint
// and consumed when the upstream callback fires. Consumption is atomic and
// happens at most once.
type PendingAuthorization struct {
	// ClientID is the caller's OAuth client identifier.
	ClientID string

	// RedirectURI is where the caller is sent after the upstream consents.
	RedirectURI string

	// State is the caller's opaque state, echoed back on redirect.
	State string

	// PKCEChallenge is the caller's S256 code challenge.
	PKCEChallenge string

	// Scope is the caller's requested scope, if any.
	Scope string

	// UpstreamNonce is the server-generated nonce embedded in the upstream
	// state parameter; the callback must present it.
	UpstreamNonce string

	CreatedAt time.Time
}

// AuthorizationCode is created at the upstream callback and consumed exactly
// once at the token endpoint.
type AuthorizationCode struct {
	// RedirectURI and PKCEChallenge are carried over from the pending
	// authorization for verification at the token endpoint.
	RedirectURI   string
	PKCEChallenge string

	// UserID is the resolved upstream user identifier.
	UserID string

	// Upstream token pair captured from the code exchange.
	UpstreamAccessToken  string
	UpstreamRefreshToken string
	UpstreamExpiresAt    time.Time

	CreatedAt time.Time
}

// RefreshTokenRecord is created at token issuance and lives for 30 days.
// Unlike codes it is reusable until expiry.
type RefreshTokenRecord struct {
	UserID string

	UpstreamAccessToken  string
	UpstreamRefreshToken string
	UpstreamExpiresAt    time.Time

	CreatedAt time.Time
}

// NewStorageKey returns a 32-byte random identifier, hex encoded.
// It is used for pending-authorization keys, authorization codes, and
// refresh-token identifiers.
func NewStorageKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is unrecoverable.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
