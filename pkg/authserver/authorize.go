package authserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/redditmcp/redditmcp/pkg/authserver/storage"
	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/oauth"
)

// AuthorizeHandler handles GET /oauth/authorize. It validates the caller's
// request, records a pending authorization, and redirects the browser to
// Reddit. The upstream state parameter is the pending row's storage key and
// a nonce joined by a colon; the callback splits it to find the row.
//
// A bad or missing redirect_uri always yields a direct 400. The user agent
// is never redirected to an unvalidated target.
func (h *Handler) AuthorizeHandler(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" || !AllowedRedirectURI(redirectURI) {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest,
			"redirect_uri is missing or not allowed")
		return
	}
	if q.Get("client_id") == "" {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest, "client_id is required")
		return
	}
	if q.Get("response_type") != oauth.ResponseTypeCode {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorUnsupportedResponseType,
			"response_type must be code")
		return
	}
	if q.Get("code_challenge") == "" {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest, "code_challenge is required")
		return
	}
	if q.Get("code_challenge_method") != oauth.PKCEChallengeMethodS256 {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest,
			"code_challenge_method must be S256")
		return
	}
	if q.Get("state") == "" {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest, "state is required")
		return
	}

	storageKey := storage.NewStorageKey()
	nonce := uuid.NewString()

	pending := &storage.PendingAuthorization{
		ClientID:      q.Get("client_id"),
		RedirectURI:   redirectURI,
		State:         q.Get("state"),
		PKCEChallenge: q.Get("code_challenge"),
		Scope:         q.Get("scope"),
		UpstreamNonce: nonce,
		CreatedAt:     time.Now(),
	}
	if err := h.store.PutPendingAuthorization(storageKey, pending); err != nil {
		logger.Errorw("failed to store pending authorization", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError, oauth.ErrorServerError,
			"failed to store authorization request")
		return
	}

	upstreamState := storageKey + ":" + nonce
	upstreamURL, err := h.upstream.AuthorizationURL(upstreamState, "identity read")
	if err != nil {
		logger.Errorw("failed to build upstream authorization URL", "error", err)
		oauth.WriteError(w, http.StatusInternalServerError, oauth.ErrorServerError,
			"failed to build authorization URL")
		return
	}

	logger.Debugw("redirecting to upstream authorize", "client_id", pending.ClientID)
	http.Redirect(w, req, upstreamURL, http.StatusFound)
}
