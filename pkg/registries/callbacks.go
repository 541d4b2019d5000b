package registries

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
)

// SuggestActionCallback is the continuation name for moderation-style
// sampling: the model proposes what to do with a post.
const SuggestActionCallback = "suggest_action"

// suggestActionSchema constrains the model's decision document. content is
// only meaningful for reply actions.
const suggestActionSchema = `{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"enum": ["reply", "upvote", "ignore"]
		},
		"reasoning": {
			"type": "string",
			"minLength": 1
		},
		"content": {
			"type": "string"
		}
	},
	"required": ["action", "reasoning"],
	"additionalProperties": false
}`

func defaultCallbacks() []*mcp.CallbackDefinition {
	return []*mcp.CallbackDefinition{
		{
			Name:    SuggestActionCallback,
			Schema:  suggestActionSchema,
			Handler: handleSuggestAction,
		},
	}
}

// handleSuggestAction records the model's decision and notifies the client.
// The gateway holds a read-only scope, so reply content is surfaced to the
// client rather than posted upstream.
func handleSuggestAction(_ context.Context, call *mcp.CallContext, payload json.RawMessage) error {
	action := gjson.GetBytes(payload, "action").String()
	reasoning := gjson.GetBytes(payload, "reasoning").String()

	logger.Infow("model suggested action",
		"session", call.SessionID,
		"user", call.Credentials.UserID,
		"action", action,
	)

	if call.Notify != nil {
		params := map[string]any{
			"action":    action,
			"reasoning": reasoning,
		}
		if action == "reply" {
			params["content"] = gjson.GetBytes(payload, "content").String()
		}
		call.Notify("notifications/suggested_action", params)
	}
	return nil
}
