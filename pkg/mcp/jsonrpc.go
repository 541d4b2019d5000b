// Package mcp implements the per-session MCP engine: JSON-RPC dispatch over
// the streamable HTTP transport, the tool, prompt, and resource surfaces,
// and the server-initiated sampling round trip.
package mcp

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only supported JSON-RPC version.
const JSONRPCVersion = "2.0"

// JSONRPCMessage is the wire envelope for every message on the transport.
// Request IDs are kept raw so string and numeric ids echo back unmodified.
type JSONRPCMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is the error member of a response.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewRequestMessage creates a request with the given id.
func NewRequestMessage(id json.RawMessage, method string, params any) (*JSONRPCMessage, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}
	return &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// NewResponseMessage creates a success response for the given id.
func NewResponseMessage(id json.RawMessage, result any) (*JSONRPCMessage, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  resultJSON,
	}, nil
}

// NewErrorMessage creates an error response for the given id.
func NewErrorMessage(id json.RawMessage, code int, message string, data any) *JSONRPCMessage {
	var dataJSON json.RawMessage
	if data != nil {
		dataJSON, _ = json.Marshal(data)
	}
	return &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    dataJSON,
		},
	}
}

// NewNotificationMessage creates a notification (no id, no response).
func NewNotificationMessage(method string, params any) (*JSONRPCMessage, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}
	return &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// IsRequest reports whether the message expects a response.
func (m *JSONRPCMessage) IsRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsResponse reports whether the message answers an outstanding request.
func (m *JSONRPCMessage) IsResponse() bool {
	return m.Method == "" && len(m.ID) > 0 && (m.Result != nil || m.Error != nil)
}

// IsNotification reports whether the message is a fire-and-forget
// notification.
func (m *JSONRPCMessage) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// Validate checks the envelope invariants.
func (m *JSONRPCMessage) Validate() error {
	if m.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("invalid JSON-RPC version: %q", m.JSONRPC)
	}
	if m.Method == "" && len(m.ID) == 0 {
		return fmt.Errorf("message is neither request, notification, nor response")
	}
	return nil
}
