package authserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/oauth"
)

// maxRegistrationBodySize bounds the registration request body.
const maxRegistrationBodySize = 64 * 1024

// RegisterHandler implements RFC 7591 dynamic client registration for public
// clients. Every caller receives the same fixed client_id; PKCE, not client
// identity, binds each flow to its initiator. Redirect URIs are validated
// but not persisted, so registration stays stateless.
func (h *Handler) RegisterHandler(w http.ResponseWriter, req *http.Request) {
	var body oauth.ClientRegistrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRegistrationBodySize)).Decode(&body); err != nil {
		oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest, "request body must be valid JSON")
		return
	}

	for _, uri := range body.RedirectURIs {
		if !AllowedRedirectURI(uri) {
			logger.Debugw("rejected registration redirect URI", "redirect_uri", uri)
			oauth.WriteError(w, http.StatusBadRequest, oauth.ErrorInvalidRequest,
				"redirect_uris contains a disallowed URI")
			return
		}
	}

	resp := oauth.ClientRegistrationResponse{
		ClientID:                oauth.PublicClientID,
		RedirectURIs:            body.RedirectURIs,
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodNone,
		GrantTypes:              []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
		ResponseTypes:           []string{oauth.ResponseTypeCode},
		ClientIDIssuedAt:        time.Now().Unix(),
	}

	writeJSON(w, http.StatusCreated, resp)
}

// AllowedRedirectURI reports whether a redirect URI is acceptable:
// HTTPS anywhere, HTTP only on loopback hosts, and custom schemes for
// native clients. Schemeless or relative URIs are rejected.
func AllowedRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}

	switch u.Scheme {
	case "https":
		return u.Host != ""
	case "http":
		return isLoopbackHost(u.Hostname())
	default:
		// Native-app custom schemes carry no host requirements.
		return true
	}
}

func isLoopbackHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
