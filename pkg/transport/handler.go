package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
	"github.com/redditmcp/redditmcp/pkg/transport/middleware"
	"github.com/redditmcp/redditmcp/pkg/transport/session"
)

// HeaderSessionID carries the session identifier on every MCP request
// after initialize.
const HeaderSessionID = "Mcp-Session-Id"

// Handler serves the streamable HTTP MCP endpoint.
type Handler struct {
	table *session.Table
}

// NewHandler creates the endpoint handler over a session table.
func NewHandler(table *session.Table) *Handler {
	return &Handler{table: table}
}

// Routes registers the /mcp methods on the provided router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/mcp", h.handlePost)
	r.Get("/mcp", h.handleGet)
	r.Delete("/mcp", h.handleDelete)
}

// handlePost accepts one JSON-RPC message. Requests get their response in
// the POST body; notifications and responses are acknowledged with 202.
// An initialize request without a session header creates the session.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.CredentialsFromContext(r.Context())
	if !ok {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewErrorMessage(nil, mcp.ErrCodeParse, "failed to read request body", nil))
		return
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewErrorMessage(nil, mcp.ErrCodeInvalidRequest, "batch requests are not supported", nil))
		return
	}

	sess, status, errMsg := h.resolveSession(r, creds, body)
	if errMsg != nil {
		writeJSONRPC(w, status, errMsg)
		return
	}

	// Echo the session id so clients can pick it up after initialize.
	w.Header().Set(HeaderSessionID, sess.ID())
	w.Header().Set("Access-Control-Expose-Headers", HeaderSessionID)

	resp := sess.Instance().HandleMessage(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSONRPC(w, http.StatusOK, resp)
}

// resolveSession maps the request to a session: binding by header when
// present, creating one for a fresh initialize otherwise.
func (h *Handler) resolveSession(r *http.Request, creds mcp.Credentials, body []byte) (*session.Session, int, *mcp.JSONRPCMessage) {
	sid := r.Header.Get(HeaderSessionID)
	if sid == "" {
		if gjson.GetBytes(body, "method").String() != "initialize" {
			return nil, http.StatusBadRequest, mcp.NewErrorMessage(nil, mcp.ErrCodeInvalidRequest,
				fmt.Sprintf("%s header is required after initialize", HeaderSessionID), nil)
		}
		return h.table.Create(creds), 0, nil
	}

	sess, err := h.table.Bind(sid, creds)
	if err != nil {
		logger.Debugw("request for unknown session", "session", sid)
		return nil, http.StatusNotFound, mcp.NewErrorMessage(nil, mcp.ErrCodeSessionNotFound,
			"session not found or expired", nil)
	}
	return sess, 0, nil
}

// handleGet opens the SSE response channel for server-initiated messages.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.CredentialsFromContext(r.Context())
	if !ok {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	sid := r.Header.Get(HeaderSessionID)
	if sid == "" {
		writeJSONRPC(w, http.StatusBadRequest, mcp.NewErrorMessage(nil, mcp.ErrCodeInvalidRequest,
			fmt.Sprintf("%s header is required", HeaderSessionID), nil))
		return
	}

	sess, err := h.table.Bind(sid, creds)
	if err != nil {
		writeJSONRPC(w, http.StatusNotFound, mcp.NewErrorMessage(nil, mcp.ErrCodeSessionNotFound,
			"session not found or expired", nil))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	stream := NewSSEStream()
	sess.Instance().AttachSink(stream)
	defer func() {
		// Closing the response channel ends the session: outstanding
		// sampling calls resolve as transport_closed immediately, and
		// later requests on this id fail session_not_found.
		stream.Close()
		h.table.Delete(sess.ID())
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(HeaderSessionID, sess.ID())
	w.Header().Set("Access-Control-Expose-Headers", HeaderSessionID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Debugw("response channel opened", "session", sess.ID())

	for {
		select {
		case <-r.Context().Done():
			logger.Debugw("response channel closed by client", "session", sess.ID())
			return
		case <-stream.Done():
			return
		case msg := <-stream.Messages():
			event, err := encodeSSEEvent(msg)
			if err != nil {
				logger.Errorw("failed to encode SSE event", "error", err)
				continue
			}
			if _, err := io.WriteString(w, event); err != nil {
				return
			}
			flusher.Flush()
			sess.Touch()
		}
	}
}

// handleDelete terminates a session explicitly.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.CredentialsFromContext(r.Context()); !ok {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	sid := r.Header.Get(HeaderSessionID)
	if sid == "" {
		writeJSONRPC(w, http.StatusBadRequest, mcp.NewErrorMessage(nil, mcp.ErrCodeInvalidRequest,
			fmt.Sprintf("%s header is required", HeaderSessionID), nil))
		return
	}

	h.table.Delete(sid)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSONRPC(w http.ResponseWriter, status int, msg *mcp.JSONRPCMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(msg)
}
