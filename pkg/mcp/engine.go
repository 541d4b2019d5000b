package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/telemetry"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2025-03-26"

// Server identity reported on initialize.
const (
	ServerName    = "redditmcp-gateway"
	ServerVersion = "1.0.0"
)

// MethodSamplingComplete notifies the client that a sampling continuation
// has finished processing the model's output.
const MethodSamplingComplete = "notifications/sampling/complete"

// ErrUpstreamAPI marks failures from the Reddit API made on the caller's
// behalf. The upstream client wraps its errors with it.
var ErrUpstreamAPI = errors.New("upstream api error")

// ErrAuthRequired marks operations that need upstream credentials when the
// session has none bound. Checked before any upstream call is attempted.
var ErrAuthRequired = errors.New("authentication required")

// placeholderPattern matches {{name}} substitution points in prompt
// templates.
var placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

// Registries bundles the capability surfaces an Instance serves.
type Registries struct {
	Tools     ToolRegistry
	Prompts   PromptRegistry
	Resources ResourceRegistry
	Callbacks CallbackRegistry
}

// Instance is one session's MCP engine. It owns the session's credential
// snapshot and sampling broker, and dispatches every JSON-RPC message the
// transport hands it. Instances are safe for concurrent use.
type Instance struct {
	sessionID  string
	creds      Credentials
	registries Registries
	broker     *SamplingBroker
}

// NewInstance creates an engine for one session.
func NewInstance(sessionID string, creds Credentials, registries Registries) *Instance {
	return &Instance{
		sessionID:  sessionID,
		creds:      creds,
		registries: registries,
		broker:     NewSamplingBroker(),
	}
}

// Credentials returns the session's credential snapshot.
func (i *Instance) Credentials() Credentials {
	return i.creds
}

// Broker returns the session's sampling broker.
func (i *Instance) Broker() *SamplingBroker {
	return i.broker
}

// AttachSink binds the session's response channel for server-initiated
// messages.
func (i *Instance) AttachSink(s Sink) {
	i.broker.AttachSink(s)
}

// Close resolves outstanding sampling calls as transport_closed.
func (i *Instance) Close() {
	i.broker.Close()
}

// HandleMessage dispatches one decoded JSON-RPC message. A nil return means
// no response body is due (notifications and routed responses).
func (i *Instance) HandleMessage(ctx context.Context, raw []byte) *JSONRPCMessage {
	var msg JSONRPCMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return NewErrorMessage(nil, ErrCodeParse, "failed to parse JSON-RPC message", nil)
	}
	if err := msg.Validate(); err != nil {
		return NewErrorMessage(msg.ID, ErrCodeInvalidRequest, err.Error(), nil)
	}

	if msg.IsResponse() {
		if !i.broker.HandleResponse(&msg) {
			logger.Debugw("dropping response with no outstanding request", "session", i.sessionID)
		}
		return nil
	}

	if msg.IsNotification() {
		i.handleNotification(&msg)
		return nil
	}

	return i.handleRequest(ctx, &msg)
}

func (i *Instance) handleNotification(msg *JSONRPCMessage) {
	switch msg.Method {
	case "notifications/initialized", "notifications/cancelled", "notifications/roots/list_changed":
		logger.Debugw("client notification", "session", i.sessionID, "method", msg.Method)
	default:
		logger.Debugw("ignoring unknown notification", "session", i.sessionID, "method", msg.Method)
	}
}

func (i *Instance) handleRequest(ctx context.Context, msg *JSONRPCMessage) *JSONRPCMessage {
	switch msg.Method {
	case "initialize":
		return i.handleInitialize(msg)
	case "ping":
		return mustResponse(msg.ID, struct{}{})
	case "tools/list":
		return i.handleToolsList(msg)
	case "tools/call":
		return i.handleToolsCall(ctx, msg)
	case "prompts/list":
		return i.handlePromptsList(msg)
	case "prompts/get":
		return i.handlePromptsGet(ctx, msg)
	case "resources/list":
		return i.handleResourcesList(msg)
	case "resources/read":
		return i.handleResourcesRead(ctx, msg)
	default:
		return NewErrorMessage(msg.ID, ErrCodeMethodNotFound,
			fmt.Sprintf("method not found: %s", msg.Method), nil)
	}
}

func (i *Instance) handleInitialize(msg *JSONRPCMessage) *JSONRPCMessage {
	result := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"prompts":   map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    ServerName,
			"version": ServerVersion,
		},
	}
	logger.Infow("session initialized", "session", i.sessionID, "user", i.creds.UserID)
	return mustResponse(msg.ID, result)
}

func (i *Instance) handleToolsList(msg *JSONRPCMessage) *JSONRPCMessage {
	return mustResponse(msg.ID, map[string]any{
		"tools": i.registries.Tools.List(),
	})
}

func (i *Instance) handleToolsCall(ctx context.Context, msg *JSONRPCMessage) *JSONRPCMessage {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Name == "" {
		return NewErrorMessage(msg.ID, ErrCodeInvalidParams, "tools/call requires a tool name", nil)
	}

	def, ok := i.registries.Tools.Get(params.Name)
	if !ok {
		telemetry.ToolCalls.WithLabelValues(params.Name, "not_found").Inc()
		return NewErrorMessage(msg.ID, ErrCodeNotFound,
			fmt.Sprintf("tool not found: %s", params.Name), nil)
	}

	// Arguments must satisfy the input schema before the handler runs, so
	// invalid calls never reach the upstream API.
	if violations := validateArguments(def.Tool.InputSchema, params.Arguments); len(violations) > 0 {
		telemetry.ToolCalls.WithLabelValues(params.Name, "invalid_arguments").Inc()
		data, _ := json.Marshal(map[string]any{"violations": violations})
		return NewErrorMessage(msg.ID, ErrCodeInvalidParams,
			fmt.Sprintf("invalid arguments for %s", params.Name), json.RawMessage(data))
	}

	call := i.newCallContext(msg.Params)
	result, err := def.Handler(ctx, call, params.Arguments)
	if err != nil {
		telemetry.ToolCalls.WithLabelValues(params.Name, "error").Inc()
		logger.Warnw("tool call failed", "session", i.sessionID, "tool", params.Name, "error", err)
		return NewErrorMessage(msg.ID, toolErrorCode(err), err.Error(), nil)
	}

	telemetry.ToolCalls.WithLabelValues(params.Name, "ok").Inc()
	return mustResponse(msg.ID, result)
}

func (i *Instance) handlePromptsList(msg *JSONRPCMessage) *JSONRPCMessage {
	return mustResponse(msg.ID, map[string]any{
		"prompts": i.registries.Prompts.List(),
	})
}

func (i *Instance) handlePromptsGet(ctx context.Context, msg *JSONRPCMessage) *JSONRPCMessage {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Name == "" {
		return NewErrorMessage(msg.ID, ErrCodeInvalidParams, "prompts/get requires a prompt name", nil)
	}

	def, ok := i.registries.Prompts.Get(params.Name)
	if !ok {
		return NewErrorMessage(msg.ID, ErrCodeNotFound,
			fmt.Sprintf("prompt not found: %s", params.Name), nil)
	}

	// Required arguments must be present before rendering; the error names
	// every missing one.
	var missing []string
	for _, arg := range def.Prompt.Arguments {
		if arg.Required && params.Arguments[arg.Name] == "" {
			missing = append(missing, arg.Name)
		}
	}
	if len(missing) > 0 {
		data, _ := json.Marshal(map[string]any{"missing": missing})
		return NewErrorMessage(msg.ID, ErrCodeInvalidParams,
			fmt.Sprintf("missing required arguments for %s: %s", params.Name, strings.Join(missing, ", ")),
			json.RawMessage(data))
	}

	text := i.renderPrompt(ctx, def.Template, params.Arguments)

	result := mcpgo.GetPromptResult{
		Description: def.Prompt.Description,
		Messages: []mcpgo.PromptMessage{
			mcpgo.NewPromptMessage(mcpgo.RoleUser, mcpgo.NewTextContent(text)),
		},
	}
	return mustResponse(msg.ID, result)
}

// renderPrompt substitutes {{placeholder}} occurrences. Argument values win
// over resource keys; resource injection is best effort, and a failed read
// omits the body rather than leaking the placeholder.
func (i *Instance) renderPrompt(ctx context.Context, template string, args map[string]string) string {
	call := i.newCallContext(nil)
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}")
		if v, ok := args[key]; ok {
			return v
		}
		if def, ok := i.registries.Resources.GetByKey(key); ok {
			content, err := def.Read(ctx, call)
			if err != nil {
				logger.Warnw("prompt resource injection failed",
					"session", i.sessionID, "key", key, "error", err)
				return ""
			}
			return content
		}
		return match
	})
}

func (i *Instance) handleResourcesList(msg *JSONRPCMessage) *JSONRPCMessage {
	return mustResponse(msg.ID, map[string]any{
		"resources": i.registries.Resources.List(),
	})
}

func (i *Instance) handleResourcesRead(ctx context.Context, msg *JSONRPCMessage) *JSONRPCMessage {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.URI == "" {
		return NewErrorMessage(msg.ID, ErrCodeInvalidParams, "resources/read requires a uri", nil)
	}

	def, ok := i.registries.Resources.Get(params.URI)
	if !ok {
		return NewErrorMessage(msg.ID, ErrCodeNotFound,
			fmt.Sprintf("resource not found: %s", params.URI), nil)
	}

	content, err := def.Read(ctx, i.newCallContext(nil))
	if err != nil {
		logger.Warnw("resource read failed", "session", i.sessionID, "uri", params.URI, "error", err)
		return NewErrorMessage(msg.ID, toolErrorCode(err), err.Error(), nil)
	}

	result := map[string]any{
		"contents": []mcpgo.TextResourceContents{{
			URI:      params.URI,
			MIMEType: "text/plain",
			Text:     content,
		}},
	}
	return mustResponse(msg.ID, result)
}

// newCallContext builds the per-request handler context. rawParams, when
// present, is scanned for the _meta.callback continuation name.
func (i *Instance) newCallContext(rawParams json.RawMessage) *CallContext {
	call := &CallContext{
		SessionID:   i.sessionID,
		Credentials: i.creds,
		Sampler:     i.broker,
		Notify:      i.notify,
	}
	if len(rawParams) > 0 {
		call.CallbackName = gjson.GetBytes(rawParams, "_meta.callback").String()
	}
	call.DispatchCallback = i.dispatchCallback
	return call
}

// notify sends a best-effort notification on the response channel.
func (i *Instance) notify(method string, params any) {
	msg, err := NewNotificationMessage(method, params)
	if err != nil {
		return
	}
	i.broker.mu.Lock()
	sink := i.broker.sink
	i.broker.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.Send(msg); err != nil {
		logger.Debugw("failed to push notification", "session", i.sessionID, "method", method)
	}
}

// dispatchCallback runs a named continuation over a sampling result's text.
// The text must be JSON satisfying the callback's schema; violations fail
// the dispatch without invoking the handler. A sampling/complete
// notification reports the outcome either way.
func (i *Instance) dispatchCallback(ctx context.Context, name, modelText string) error {
	def, ok := i.registries.Callbacks.Get(name)
	if !ok {
		return fmt.Errorf("callback not found: %s", name)
	}

	payload := json.RawMessage(extractJSON(modelText))
	schemaLoader := gojsonschema.NewStringLoader(def.Schema)
	docLoader := gojsonschema.NewBytesLoader(payload)
	validation, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		i.notify(MethodSamplingComplete, map[string]any{
			"callback": name, "status": "invalid",
		})
		return fmt.Errorf("callback payload is not valid JSON: %w", err)
	}
	if !validation.Valid() {
		violations := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			violations = append(violations, e.String())
		}
		i.notify(MethodSamplingComplete, map[string]any{
			"callback": name, "status": "invalid", "violations": violations,
		})
		return fmt.Errorf("callback payload failed validation: %s", strings.Join(violations, "; "))
	}

	if err := def.Handler(ctx, i.newCallContext(nil), payload); err != nil {
		i.notify(MethodSamplingComplete, map[string]any{
			"callback": name, "status": "error",
		})
		return err
	}

	i.notify(MethodSamplingComplete, map[string]any{
		"callback": name, "status": "completed",
	})
	return nil
}

// extractJSON pulls the first JSON object out of model output that may be
// wrapped in prose or code fences.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if gjson.Valid(trimmed) {
		return trimmed
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if gjson.Valid(candidate) {
			return candidate
		}
	}
	return trimmed
}

// validateArguments checks tool arguments against the tool's input schema
// and returns human-readable violations naming the offending fields.
func validateArguments(schema mcpgo.ToolInputSchema, args map[string]any) []string {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return []string{"internal: tool schema is not serializable"}
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return []string{fmt.Sprintf("internal: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return violations
}

func toolErrorCode(err error) int {
	switch {
	case errors.Is(err, ErrSamplingDeadline):
		return ErrCodeDeadlineExceeded
	case errors.Is(err, ErrTransportClosed):
		return ErrCodeTransportClosed
	case errors.Is(err, ErrAuthRequired):
		return ErrCodeAuthRequired
	case errors.Is(err, ErrUpstreamAPI):
		return ErrCodeUpstream
	default:
		return ErrCodeInternal
	}
}

func mustResponse(id json.RawMessage, result any) *JSONRPCMessage {
	msg, err := NewResponseMessage(id, result)
	if err != nil {
		logger.Errorw("failed to marshal response", "error", err)
		return NewErrorMessage(id, ErrCodeInternal, "failed to marshal response", nil)
	}
	return msg
}
