package authserver

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redditmcp/redditmcp/pkg/authserver/storage"
	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/oauth"
)

// CallbackHandler handles GET /oauth/reddit/callback. It consumes the
// pending authorization named by the state parameter, exchanges the upstream
// code, resolves the user, mints a one-shot authorization code, and sends
// the browser back to the caller.
//
// The pending row is consumed atomically before anything else, so a replayed
// callback fails closed regardless of what else it carries.
func (h *Handler) CallbackHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	q := req.URL.Query()

	storageKey, nonce, ok := strings.Cut(q.Get("state"), ":")
	if !ok || storageKey == "" || nonce == "" {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest, "state parameter is malformed")
		return
	}

	pending, err := h.store.TakePendingAuthorization(storageKey)
	if err != nil {
		logger.Warnw("callback for unknown or expired authorization", "error", err)
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest,
			"authorization request not found or expired")
		return
	}

	if subtle.ConstantTimeCompare([]byte(nonce), []byte(pending.UpstreamNonce)) != 1 {
		logger.Warnw("callback nonce mismatch", "client_id", pending.ClientID)
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest, "state parameter is invalid")
		return
	}

	// The caller's redirect target was validated at authorize time; from
	// here on errors flow back to the caller, not the browser.
	if upstreamErr := q.Get("error"); upstreamErr != "" {
		logger.Infow("upstream authorization denied", "upstream_error", upstreamErr)
		redirectWithError(w, req, pending, oauth.ErrorAccessDenied)
		return
	}

	code := q.Get("code")
	if code == "" {
		redirectWithError(w, req, pending, oauth.ErrorInvalidRequest)
		return
	}

	upstreamTokens, err := h.upstream.ExchangeCode(ctx, code)
	if err != nil {
		logger.Errorw("upstream code exchange failed", "error", err)
		redirectWithError(w, req, pending, oauth.ErrorUpstreamError)
		return
	}

	userID, err := h.upstream.IdentifyUser(ctx, upstreamTokens.AccessToken)
	if err != nil {
		logger.Errorw("upstream identity lookup failed", "error", err)
		redirectWithError(w, req, pending, oauth.ErrorUpstreamError)
		return
	}

	authCode := storage.NewStorageKey()
	grant := &storage.AuthorizationCode{
		RedirectURI:          pending.RedirectURI,
		PKCEChallenge:        pending.PKCEChallenge,
		UserID:               userID,
		UpstreamAccessToken:  upstreamTokens.AccessToken,
		UpstreamRefreshToken: upstreamTokens.RefreshToken,
		UpstreamExpiresAt:    upstreamTokens.ExpiresAt,
		CreatedAt:            time.Now(),
	}
	if err := h.store.PutAuthorizationCode(authCode, grant); err != nil {
		logger.Errorw("failed to store authorization code", "error", err)
		redirectWithError(w, req, pending, oauth.ErrorServerError)
		return
	}

	logger.Infow("authorization completed", "user", userID)

	target, err := url.Parse(pending.RedirectURI)
	if err != nil {
		oauth.WriteError(w, http.StatusInternalServerError, oauth.ErrorServerError, "stored redirect URI is invalid")
		return
	}
	params := target.Query()
	params.Set("code", authCode)
	if pending.State != "" {
		params.Set("state", pending.State)
	}
	target.RawQuery = params.Encode()

	http.Redirect(w, req, target.String(), http.StatusFound)
}

// redirectWithError sends the browser back to the caller's validated
// redirect URI carrying an OAuth error code and the caller's state.
func redirectWithError(w http.ResponseWriter, req *http.Request, pending *storage.PendingAuthorization, code string) {
	target, err := url.Parse(pending.RedirectURI)
	if err != nil {
		oauth.WriteError(w, http.StatusInternalServerError, oauth.ErrorServerError, "stored redirect URI is invalid")
		return
	}
	params := target.Query()
	params.Set("error", code)
	if pending.State != "" {
		params.Set("state", pending.State)
	}
	target.RawQuery = params.Encode()

	http.Redirect(w, req, target.String(), http.StatusFound)
}
