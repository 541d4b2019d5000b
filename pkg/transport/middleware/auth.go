// Package middleware holds the HTTP middleware protecting the MCP endpoint:
// bearer verification, per-IP rate limiting, protocol version negotiation,
// and request size capping. Middlewares are applied outermost-first.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redditmcp/redditmcp/pkg/authserver/tokens"
	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
	"github.com/redditmcp/redditmcp/pkg/oauth"
)

type contextKey string

// credentialsKey stores the verified credential snapshot on the request
// context.
const credentialsKey contextKey = "mcp-credentials"

// CredentialsFromContext returns the credential snapshot the auth
// middleware attached.
func CredentialsFromContext(ctx context.Context) (mcp.Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey).(mcp.Credentials)
	return creds, ok
}

// WithCredentials attaches a credential snapshot to the context. Exported
// for tests.
func WithCredentials(ctx context.Context, creds mcp.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey, creds)
}

// BearerAuth verifies the Authorization header against the token codec and
// attaches the credential snapshot to the request context. Unauthenticated
// requests get a 401 with a WWW-Authenticate header pointing at the
// protected-resource metadata; callers that asked for an event stream get
// the error as a one-shot SSE event so EventSource clients surface it.
func BearerAuth(codec *tokens.Codec, issuerURL string) func(http.Handler) http.Handler {
	metadataURL := issuerURL + "/.well-known/oauth-protected-resource"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, r, metadataURL, false, "missing bearer token")
				return
			}

			claims, err := codec.Verify(raw, time.Now())
			if err != nil {
				logger.Debugw("bearer verification failed", "error", err)
				writeUnauthorized(w, r, metadataURL, true, "bearer token is invalid or expired")
				return
			}

			creds := mcp.Credentials{
				UserID:               claims.Subject,
				UpstreamAccessToken:  claims.UpstreamAccessToken,
				UpstreamRefreshToken: claims.UpstreamRefreshToken,
			}
			next.ServeHTTP(w, r.WithContext(WithCredentials(r.Context(), creds)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func buildWWWAuthenticate(metadataURL string, includeError bool) string {
	parts := []string{fmt.Sprintf(`resource_metadata=%q`, metadataURL)}
	if includeError {
		parts = append(parts, `error="invalid_token"`)
	}
	return "Bearer " + strings.Join(parts, ", ")
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, metadataURL string, tokenPresented bool, description string) {
	w.Header().Set("WWW-Authenticate", buildWWWAuthenticate(metadataURL, tokenPresented))

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		// EventSource clients cannot read a JSON body; hand them a single
		// error event and end the stream.
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusUnauthorized)
		errMsg := mcp.NewErrorMessage(nil, mcp.ErrCodeInvalidRequest, "authentication required", nil)
		if event, err := encodeAuthErrorEvent(errMsg); err == nil {
			_, _ = w.Write([]byte(event))
		}
		return
	}

	oauth.WriteError(w, http.StatusUnauthorized, oauth.ErrorInvalidToken, description)
}
