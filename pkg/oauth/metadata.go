// Package oauth holds the OAuth 2.0 wire types and constants shared by the
// authorization server and the protected-resource middleware.
package oauth

// Protocol constants.
const (
	// ResponseTypeCode is the only supported authorization response type.
	ResponseTypeCode = "code"

	// GrantTypeAuthorizationCode and GrantTypeRefreshToken are the supported
	// token grants.
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"

	// TokenEndpointAuthMethodNone is advertised because public clients
	// authenticate through PKCE alone; no client secret is ever issued.
	TokenEndpointAuthMethodNone = "none"

	// PKCEChallengeMethodS256 is the only accepted PKCE method (RFC 7636).
	PKCEChallengeMethodS256 = "S256"

	// PublicClientID is the fixed client identifier returned by dynamic
	// registration. All callers share it; PKCE binds each flow to its caller.
	PublicClientID = "mcp-public-client"

	// ScopeRead is the default scope granted on token issuance.
	ScopeRead = "read"
)

// AuthorizationServerMetadata is the RFC 8414 authorization-server metadata
// document served at /.well-known/oauth-authorization-server.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 document served at
// /.well-known/oauth-protected-resource. It binds this resource to its
// authorization server.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}

// TokenResponse is the success body of the token endpoint (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ClientRegistrationRequest is the RFC 7591 dynamic registration request.
// Only redirect URIs are honored; everything else is accepted and ignored.
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
}

// ClientRegistrationResponse is the RFC 7591 registration response.
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
}
