package registries

import (
	"context"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
	"github.com/redditmcp/redditmcp/pkg/reddit"
)

// defaultMaxTokens caps sampling completions when the caller does not name
// a limit.
const defaultMaxTokens = 8192

func defaultTools(deps Deps) []*mcp.ToolDefinition {
	return []*mcp.ToolDefinition{
		getUserInfoTool(deps.Reddit),
		getSubredditPostsTool(deps.Reddit),
		getPostCommentsTool(deps.Reddit),
		samplingExampleTool(),
	}
}

func getUserInfoTool(client *reddit.Client) *mcp.ToolDefinition {
	return &mcp.ToolDefinition{
		Tool: mcpgo.Tool{
			Name:        "get_user_info",
			Description: "Get the authenticated Reddit user's profile, including karma and account age.",
			InputSchema: mcpgo.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		Handler: func(ctx context.Context, call *mcp.CallContext, _ map[string]any) (*mcpgo.CallToolResult, error) {
			body, err := client.Me(ctx, call.Credentials)
			if err != nil {
				return nil, err
			}
			return mcpgo.NewToolResultText(string(body)), nil
		},
	}
}

func getSubredditPostsTool(client *reddit.Client) *mcp.ToolDefinition {
	return &mcp.ToolDefinition{
		Tool: mcpgo.Tool{
			Name:        "get_subreddit_posts",
			Description: "List posts from a subreddit.",
			InputSchema: mcpgo.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"subreddit": map[string]any{
						"type":        "string",
						"description": "Subreddit name without the r/ prefix.",
					},
					"sort": map[string]any{
						"type": "string",
						"enum": []string{"hot", "new", "top", "rising"},
					},
					"limit": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": reddit.MaxListingLimit,
					},
				},
				Required: []string{"subreddit"},
			},
		},
		Handler: func(ctx context.Context, call *mcp.CallContext, args map[string]any) (*mcpgo.CallToolResult, error) {
			subreddit, _ := args["subreddit"].(string)
			sort, _ := args["sort"].(string)
			limit := intArg(args, "limit")

			body, err := client.SubredditPosts(ctx, call.Credentials, subreddit, sort, limit)
			if err != nil {
				return nil, err
			}
			return mcpgo.NewToolResultText(string(body)), nil
		},
	}
}

func getPostCommentsTool(client *reddit.Client) *mcp.ToolDefinition {
	return &mcp.ToolDefinition{
		Tool: mcpgo.Tool{
			Name:        "get_post_comments",
			Description: "Get the comment tree for a post.",
			InputSchema: mcpgo.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"subreddit": map[string]any{
						"type":        "string",
						"description": "Subreddit name without the r/ prefix.",
					},
					"post_id": map[string]any{
						"type":        "string",
						"description": "Base36 post id, without the t3_ prefix.",
					},
					"limit": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": reddit.MaxListingLimit,
					},
				},
				Required: []string{"subreddit", "post_id"},
			},
		},
		Handler: func(ctx context.Context, call *mcp.CallContext, args map[string]any) (*mcpgo.CallToolResult, error) {
			subreddit, _ := args["subreddit"].(string)
			postID, _ := args["post_id"].(string)
			limit := intArg(args, "limit")

			body, err := client.PostComments(ctx, call.Credentials, subreddit, postID, limit)
			if err != nil {
				return nil, err
			}
			return mcpgo.NewToolResultText(string(body)), nil
		},
	}
}

// samplingExampleTool demonstrates the server-initiated sampling round
// trip: it asks the connected client's model for a completion and returns
// the text. When the call names a continuation in _meta.callback, the model
// output is dispatched through it as well.
func samplingExampleTool() *mcp.ToolDefinition {
	return &mcp.ToolDefinition{
		Tool: mcpgo.Tool{
			Name:        "sampling_example",
			Description: "Ask the connected client's model to respond to a prompt. Requires an open response channel.",
			InputSchema: mcpgo.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "Text to send to the model.",
					},
					"system_prompt": map[string]any{
						"type": "string",
					},
					"max_tokens": map[string]any{
						"type":    "integer",
						"minimum": 1,
					},
				},
				Required: []string{"prompt"},
			},
		},
		Handler: func(ctx context.Context, call *mcp.CallContext, args map[string]any) (*mcpgo.CallToolResult, error) {
			if call.Sampler == nil {
				return nil, mcp.ErrTransportClosed
			}

			prompt, _ := args["prompt"].(string)
			maxTokens := intArg(args, "max_tokens")
			if maxTokens == 0 {
				maxTokens = defaultMaxTokens
			}

			req := &mcpgo.CreateMessageRequest{}
			req.Messages = []mcpgo.SamplingMessage{{
				Role:    mcpgo.RoleUser,
				Content: mcpgo.NewTextContent(prompt),
			}}
			req.MaxTokens = maxTokens
			if sys, ok := args["system_prompt"].(string); ok {
				req.SystemPrompt = sys
			}

			result, err := call.Sampler.Sample(ctx, req)
			if err != nil {
				return nil, err
			}

			text, err := mcp.TextFromContent(result.Content)
			if err != nil {
				return nil, fmt.Errorf("sampling returned no text: %w", err)
			}

			if call.CallbackName != "" && call.DispatchCallback != nil {
				if err := call.DispatchCallback(ctx, call.CallbackName, text); err != nil {
					logger.Warnw("sampling callback failed",
						"session", call.SessionID, "callback", call.CallbackName, "error", err)
				}
			}

			return mcpgo.NewToolResultText(text), nil
		},
	}
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
