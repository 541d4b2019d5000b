// Package authserver implements the OAuth 2.1 authorization server that
// fronts Reddit: discovery documents, dynamic client registration, the
// authorize and callback legs, and the token endpoint. Bearer tokens are
// signed envelopes carrying the caller's upstream credentials, so the server
// holds no per-token state beyond refresh-token records.
package authserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/redditmcp/redditmcp/pkg/authserver/storage"
	"github.com/redditmcp/redditmcp/pkg/authserver/tokens"
	"github.com/redditmcp/redditmcp/pkg/authserver/upstream"
	"github.com/redditmcp/redditmcp/pkg/config"
)

// Handler provides the HTTP handlers for all authorization-server endpoints.
type Handler struct {
	config   *config.Config
	store    *storage.Store
	upstream *upstream.Client
	codec    *tokens.Codec
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(cfg *config.Config, store *storage.Store, up *upstream.Client, codec *tokens.Codec) *Handler {
	return &Handler{
		config:   cfg,
		store:    store,
		upstream: up,
		codec:    codec,
	}
}

// Routes returns a router with all OAuth endpoints registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.OAuthRoutes(r)
	h.WellKnownRoutes(r)
	return r
}

// OAuthRoutes registers the OAuth flow endpoints on the provided router.
func (h *Handler) OAuthRoutes(r chi.Router) {
	r.Post("/oauth/register", h.RegisterHandler)
	r.Get("/oauth/authorize", h.AuthorizeHandler)
	r.Get("/oauth/reddit/callback", h.CallbackHandler)
	r.Post("/oauth/token", h.TokenHandler)
}

// WellKnownRoutes registers the discovery endpoints on the provided router:
// RFC 8414 authorization-server metadata and RFC 9728 protected-resource
// metadata.
func (h *Handler) WellKnownRoutes(r chi.Router) {
	r.Get("/.well-known/oauth-authorization-server", h.AuthorizationServerMetadataHandler)
	r.Get("/.well-known/oauth-protected-resource", h.ProtectedResourceMetadataHandler)
}
