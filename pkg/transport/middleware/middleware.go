package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/redditmcp/redditmcp/pkg/mcp"
	"github.com/redditmcp/redditmcp/pkg/telemetry"
)

// MaxRequestBodySize caps POSTed JSON-RPC bodies at 10 MiB.
const MaxRequestBodySize = 10 << 20

// Chain applies middlewares so the first listed runs outermost.
func Chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// RateLimit rejects callers that exceed the fixed per-IP window with 429.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			telemetry.RateLimitedRequests.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "rate_limited",
				"error_description": "too many requests, slow down",
			})
		}),
	)
}

// ProtocolVersion rejects requests that name an unsupported MCP protocol
// revision. Requests without the header pass through for older clients.
func ProtocolVersion(supported string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v := r.Header.Get("MCP-Protocol-Version"); v != "" && v != supported {
				writeJSONRPCError(w, http.StatusBadRequest, mcp.ErrCodeInvalidRequest,
					fmt.Sprintf("unsupported protocol version %q, supported: %s", v, supported))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SizeCap rejects oversized request bodies with 413 before they are read.
func SizeCap(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeJSONRPCError(w, http.StatusRequestEntityTooLarge, mcp.ErrCodeInvalidRequest,
					"request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(mcp.NewErrorMessage(nil, code, message, nil))
}

// encodeAuthErrorEvent renders a JSON-RPC error as a single SSE frame.
func encodeAuthErrorEvent(msg *mcp.JSONRPCMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("event: error\ndata: %s\n\n", data), nil
}
