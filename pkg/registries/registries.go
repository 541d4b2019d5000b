// Package registries assembles the default capability surfaces the gateway
// exposes over MCP: Reddit-backed tools, prompt templates, resources, and
// sampling continuations.
package registries

import (
	"sort"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/redditmcp/redditmcp/pkg/mcp"
	"github.com/redditmcp/redditmcp/pkg/reddit"
)

// Deps are the collaborators the default registries need.
type Deps struct {
	Reddit *reddit.Client
}

// Default builds the standard registry set.
func Default(deps Deps) mcp.Registries {
	return mcp.Registries{
		Tools:     newToolRegistry(defaultTools(deps)),
		Prompts:   newPromptRegistry(defaultPrompts()),
		Resources: newResourceRegistry(defaultResources(deps)),
		Callbacks: newCallbackRegistry(defaultCallbacks()),
	}
}

type toolRegistry struct {
	defs map[string]*mcp.ToolDefinition
}

func newToolRegistry(defs []*mcp.ToolDefinition) *toolRegistry {
	m := make(map[string]*mcp.ToolDefinition, len(defs))
	for _, d := range defs {
		m[d.Tool.Name] = d
	}
	return &toolRegistry{defs: m}
}

func (r *toolRegistry) List() []mcpgo.Tool {
	out := make([]mcpgo.Tool, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d.Tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *toolRegistry) Get(name string) (*mcp.ToolDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

type promptRegistry struct {
	defs map[string]*mcp.PromptDefinition
}

func newPromptRegistry(defs []*mcp.PromptDefinition) *promptRegistry {
	m := make(map[string]*mcp.PromptDefinition, len(defs))
	for _, d := range defs {
		m[d.Prompt.Name] = d
	}
	return &promptRegistry{defs: m}
}

func (r *promptRegistry) List() []mcpgo.Prompt {
	out := make([]mcpgo.Prompt, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d.Prompt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *promptRegistry) Get(name string) (*mcp.PromptDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

type resourceRegistry struct {
	defs  map[string]*mcp.ResourceDefinition
	byKey map[string]*mcp.ResourceDefinition
}

func newResourceRegistry(defs []*mcp.ResourceDefinition) *resourceRegistry {
	m := make(map[string]*mcp.ResourceDefinition, len(defs))
	byKey := make(map[string]*mcp.ResourceDefinition)
	for _, d := range defs {
		m[d.Resource.URI] = d
		if d.Key != "" {
			byKey[d.Key] = d
		}
	}
	return &resourceRegistry{defs: m, byKey: byKey}
}

func (r *resourceRegistry) List() []mcpgo.Resource {
	out := make([]mcpgo.Resource, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d.Resource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

func (r *resourceRegistry) Get(uri string) (*mcp.ResourceDefinition, bool) {
	d, ok := r.defs[uri]
	return d, ok
}

func (r *resourceRegistry) GetByKey(key string) (*mcp.ResourceDefinition, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

type callbackRegistry struct {
	defs map[string]*mcp.CallbackDefinition
}

func newCallbackRegistry(defs []*mcp.CallbackDefinition) *callbackRegistry {
	m := make(map[string]*mcp.CallbackDefinition, len(defs))
	for _, d := range defs {
		m[d.Name] = d
	}
	return &callbackRegistry{defs: m}
}

func (r *callbackRegistry) Get(name string) (*mcp.CallbackDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}
