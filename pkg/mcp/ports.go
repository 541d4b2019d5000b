package mcp

import (
	"context"
	"encoding/json"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// Credentials is the per-session snapshot of the caller's identity and
// upstream tokens, taken from the verified bearer at session bind time.
// It is immutable; a fresher bearer on a later request rebuilds the session.
type Credentials struct {
	UserID               string
	UpstreamAccessToken  string
	UpstreamRefreshToken string
}

// CallContext carries per-request state into tool, prompt, and resource
// handlers.
type CallContext struct {
	SessionID   string
	Credentials Credentials

	// Sampler lets a handler run a server-initiated sampling round trip.
	// Nil when the session has no open response channel.
	Sampler Sampler

	// CallbackName is the continuation named in the request's
	// _meta.callback field, empty when absent.
	CallbackName string

	// Notify sends a notification to the session's response channel.
	// Best effort; nil when no channel is open.
	Notify func(method string, params any)

	// DispatchCallback runs the named continuation over a sampling result's
	// text: schema validation, handler invocation, completion notification.
	DispatchCallback func(ctx context.Context, name, modelText string) error
}

// Sampler runs a sampling round trip against the connected client.
type Sampler interface {
	// Sample sends a sampling/createMessage request and blocks until the
	// client responds, the deadline passes, or the transport closes.
	Sample(ctx context.Context, req *mcpgo.CreateMessageRequest) (*CreateMessageResult, error)
}

// CreateMessageResult is the client's answer to a sampling request. The
// content is kept raw because clients encode it in several shapes.
type CreateMessageResult struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	Model      string          `json:"model,omitempty"`
	StopReason string          `json:"stopReason,omitempty"`
}

// ToolHandler executes a tool call. Argument validation against the tool's
// input schema happens before the handler runs.
type ToolHandler func(ctx context.Context, call *CallContext, args map[string]any) (*mcpgo.CallToolResult, error)

// ToolDefinition pairs a tool's wire description with its handler.
type ToolDefinition struct {
	Tool    mcpgo.Tool
	Handler ToolHandler
}

// ToolRegistry is the engine's view of the available tools.
type ToolRegistry interface {
	// List returns tool descriptions sorted by name.
	List() []mcpgo.Tool
	// Get returns the definition for a tool name.
	Get(name string) (*ToolDefinition, bool)
}

// PromptDefinition pairs a prompt's wire description with its template.
// Templates contain {{argument}} placeholders filled from prompts/get
// arguments, and {{resource_key}} placeholders filled from resources.
type PromptDefinition struct {
	Prompt   mcpgo.Prompt
	Template string
}

// PromptRegistry is the engine's view of the available prompts.
type PromptRegistry interface {
	List() []mcpgo.Prompt
	Get(name string) (*PromptDefinition, bool)
}

// ResourceDefinition pairs a resource's wire description with its reader.
type ResourceDefinition struct {
	Resource mcpgo.Resource
	// Key is the short placeholder name prompts use to inline this
	// resource's content, empty when the resource is not inlinable.
	Key string
	// Read produces the resource's text content.
	Read func(ctx context.Context, call *CallContext) (string, error)
}

// ResourceRegistry is the engine's view of the available resources.
type ResourceRegistry interface {
	List() []mcpgo.Resource
	// Get returns the definition for a resource URI.
	Get(uri string) (*ResourceDefinition, bool)
	// GetByKey returns the definition for a prompt placeholder key.
	GetByKey(key string) (*ResourceDefinition, bool)
}

// CallbackHandler processes the model output of a sampling round trip that
// was started with a named continuation. The payload is the extracted text
// of the model's reply, already validated against the callback's schema.
type CallbackHandler func(ctx context.Context, call *CallContext, payload json.RawMessage) error

// CallbackDefinition names a sampling continuation and the JSON schema its
// payload must satisfy.
type CallbackDefinition struct {
	Name    string
	Schema  string
	Handler CallbackHandler
}

// CallbackRegistry resolves continuation names from _meta.callback.
type CallbackRegistry interface {
	Get(name string) (*CallbackDefinition, bool)
}
