package oauth

import (
	"encoding/json"
	"net/http"
)

// Canonical OAuth 2.0 error codes surfaced at the boundary (RFC 6749 §5.2
// plus the resource-server codes from RFC 6750).
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorInvalidToken            = "invalid_token"
	ErrorAccessDenied            = "access_denied"
	ErrorUpstreamError           = "upstream_error"
	ErrorServerError             = "server_error"
)

// ErrorResponse is the JSON error body every OAuth endpoint returns.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError writes an OAuth error response. The description must never
// contain token material or other secrets.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
