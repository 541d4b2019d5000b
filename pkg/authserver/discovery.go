package authserver

import (
	"encoding/json"
	"net/http"

	"github.com/redditmcp/redditmcp/pkg/oauth"
)

// AuthorizationServerMetadataHandler serves the RFC 8414 document. The
// content is a pure function of the configured issuer.
func (h *Handler) AuthorizationServerMetadataHandler(w http.ResponseWriter, _ *http.Request) {
	issuer := h.config.IssuerURL
	metadata := oauth.AuthorizationServerMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/oauth/authorize",
		TokenEndpoint:                     issuer + "/oauth/token",
		RegistrationEndpoint:              issuer + "/oauth/register",
		ResponseTypesSupported:            []string{oauth.ResponseTypeCode},
		GrantTypesSupported:               []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
		CodeChallengeMethodsSupported:     []string{oauth.PKCEChallengeMethodS256},
		TokenEndpointAuthMethodsSupported: []string{oauth.TokenEndpointAuthMethodNone},
		ScopesSupported:                   []string{oauth.ScopeRead},
	}

	writeJSON(w, http.StatusOK, metadata)
}

// ProtectedResourceMetadataHandler serves the RFC 9728 document binding the
// MCP resource to this authorization server.
func (h *Handler) ProtectedResourceMetadataHandler(w http.ResponseWriter, _ *http.Request) {
	issuer := h.config.IssuerURL
	metadata := oauth.ProtectedResourceMetadata{
		Resource:               issuer + "/mcp",
		AuthorizationServers:   []string{issuer},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        []string{oauth.ScopeRead},
	}

	writeJSON(w, http.StatusOK, metadata)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
