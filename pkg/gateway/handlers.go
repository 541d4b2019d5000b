package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
)

// healthHandler reports liveness plus coarse component stats. It is
// unauthenticated and safe to poll.
func (g *Gateway) healthHandler(w http.ResponseWriter, _ *http.Request) {
	stats := g.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  mcp.ServerName,
		"version":  mcp.ServerVersion,
		"protocol": mcp.ProtocolVersion,
		"sessions": g.table.Len(),
		"storage": map[string]int{
			"pending_authorizations": stats.PendingAuthorizations,
			"authorization_codes":    stats.AuthorizationCodes,
			"refresh_tokens":         stats.RefreshTokens,
		},
	})
}

// indexHandler is a human-readable service index with absolute endpoint
// URLs, handy when pointing an MCP client at the gateway.
func (g *Gateway) indexHandler(w http.ResponseWriter, _ *http.Request) {
	issuer := g.cfg.IssuerURL
	writeJSON(w, http.StatusOK, map[string]any{
		"service":     mcp.ServerName,
		"version":     mcp.ServerVersion,
		"description": "MCP gateway for the Reddit API over streamable HTTP.",
		"endpoints": map[string]string{
			"mcp":                           issuer + "/mcp",
			"authorization_server_metadata": issuer + "/.well-known/oauth-authorization-server",
			"protected_resource_metadata":   issuer + "/.well-known/oauth-protected-resource",
			"registration":                  issuer + "/oauth/register",
			"authorization":                 issuer + "/oauth/authorize",
			"token":                         issuer + "/oauth/token",
			"health":                        issuer + "/health",
			"metrics":                       issuer + "/metrics",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to encode response", "error", err)
	}
}
