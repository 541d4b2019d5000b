package authserver

import (
	"net/http"
	"time"

	"github.com/redditmcp/redditmcp/pkg/authserver/crypto"
	"github.com/redditmcp/redditmcp/pkg/authserver/storage"
	"github.com/redditmcp/redditmcp/pkg/authserver/tokens"
	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/oauth"
	"github.com/redditmcp/redditmcp/pkg/telemetry"
)

// upstreamRefreshThreshold is how close to expiry a stored upstream access
// token must be before the refresh grant refreshes it against Reddit.
const upstreamRefreshThreshold = 5 * time.Minute

// maxTokenBodySize bounds the token request body.
const maxTokenBodySize = 64 * 1024

// TokenHandler handles POST /oauth/token for the authorization_code and
// refresh_token grants.
func (h *Handler) TokenHandler(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxTokenBodySize)
	if err := req.ParseForm(); err != nil {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest, "request body must be form encoded")
		return
	}

	switch req.PostForm.Get("grant_type") {
	case oauth.GrantTypeAuthorizationCode:
		h.handleAuthorizationCodeGrant(w, req)
	case oauth.GrantTypeRefreshToken:
		h.handleRefreshTokenGrant(w, req)
	default:
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorUnsupportedGrantType,
			"grant_type must be authorization_code or refresh_token")
	}
}

// handleAuthorizationCodeGrant redeems a one-shot authorization code. The
// code is consumed before PKCE verification, so a replayed code fails even
// when it arrives with a valid verifier.
func (h *Handler) handleAuthorizationCodeGrant(w http.ResponseWriter, req *http.Request) {
	code := req.PostForm.Get("code")
	verifier := req.PostForm.Get("code_verifier")
	redirectURI := req.PostForm.Get("redirect_uri")

	if code == "" || verifier == "" {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest,
			"code and code_verifier are required")
		return
	}

	grant, err := h.store.TakeAuthorizationCode(code)
	if err != nil {
		logger.Warnw("token exchange with unknown or expired code", "error", err)
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidGrant,
			"authorization code is invalid or expired")
		return
	}

	if redirectURI != grant.RedirectURI {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidGrant, "redirect_uri does not match")
		return
	}
	if !crypto.VerifyPKCE(verifier, grant.PKCEChallenge) {
		logger.Warnw("PKCE verification failed", "user", grant.UserID)
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidGrant, "PKCE verification failed")
		return
	}

	refreshID := storage.NewStorageKey()
	record := &storage.RefreshTokenRecord{
		UserID:               grant.UserID,
		UpstreamAccessToken:  grant.UpstreamAccessToken,
		UpstreamRefreshToken: grant.UpstreamRefreshToken,
		UpstreamExpiresAt:    grant.UpstreamExpiresAt,
		CreatedAt:            time.Now(),
	}
	if err := h.store.PutRefreshToken(refreshID, record); err != nil {
		logger.Errorw("failed to store refresh token", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError, oauth.ErrorServerError, "failed to persist grant")
		return
	}

	h.writeTokenResponse(w, oauth.GrantTypeAuthorizationCode, grant.UserID,
		grant.UpstreamAccessToken, grant.UpstreamRefreshToken, refreshID)
}

// handleRefreshTokenGrant mints a fresh bearer from a stored refresh record.
// When the stored upstream access token is near expiry it is refreshed
// against Reddit first; a failed upstream refresh is surfaced as
// upstream_error rather than minting a bearer around a stale credential.
// Refresh tokens are not rotated.
func (h *Handler) handleRefreshTokenGrant(w http.ResponseWriter, req *http.Request) {
	refreshID := req.PostForm.Get("refresh_token")
	if refreshID == "" {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest, "refresh_token is required")
		return
	}

	record, err := h.store.GetRefreshToken(refreshID)
	if err != nil {
		logger.Warnw("refresh grant with unknown or expired token", "error", err)
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidGrant,
			"refresh token is invalid or expired")
		return
	}

	if time.Until(record.UpstreamExpiresAt) < upstreamRefreshThreshold && record.UpstreamRefreshToken != "" {
		refreshed, err := h.upstream.RefreshTokens(req.Context(), record.UpstreamRefreshToken)
		if err != nil {
			logger.Errorw("upstream token refresh failed", "user", record.UserID, "error", err)
			oauth.WriteError(w, http.StatusBadGateway, oauth.ErrorUpstreamError,
				"failed to refresh upstream credentials")
			return
		}

		record.UpstreamAccessToken = refreshed.AccessToken
		record.UpstreamRefreshToken = refreshed.RefreshToken
		record.UpstreamExpiresAt = refreshed.ExpiresAt
		if err := h.store.UpdateRefreshToken(refreshID, record); err != nil {
			logger.Errorw("failed to update refresh token record", "error", err)
			oauth.WriteError(w, http.StatusInternalServerError, oauth.ErrorServerError, "failed to persist grant")
			return
		}
	}

	h.writeTokenResponse(w, oauth.GrantTypeRefreshToken, record.UserID,
		record.UpstreamAccessToken, record.UpstreamRefreshToken, refreshID)
}

func (h *Handler) writeTokenResponse(w http.ResponseWriter, grantType, userID, upstreamAccess, upstreamRefresh, refreshID string) {
	bearer, err := h.codec.Mint(userID, upstreamAccess, upstreamRefresh, time.Now())
	if err != nil {
		logger.Errorw("failed to mint bearer token", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError, oauth.ErrorServerError, "failed to issue token")
		return
	}

	telemetry.TokensIssued.WithLabelValues(grantType).Inc()
	logger.Infow("bearer token issued", "user", userID, "grant_type", grantType)

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, oauth.TokenResponse{
		AccessToken:  bearer,
		TokenType:    "Bearer",
		ExpiresIn:    int64(tokens.BearerTokenLifetime / time.Second),
		RefreshToken: refreshID,
		Scope:        oauth.ScopeRead,
	})
}
