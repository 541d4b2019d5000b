package registries

import (
	"context"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/redditmcp/redditmcp/pkg/mcp"
)

// Resource URIs.
const (
	ReplyGuidelinesURI = "reddit://guidelines/reply"
	IdentityURI        = "reddit://me/identity"
)

// replyGuidelines is the static reply policy injected into the draft_reply
// prompt.
const replyGuidelines = `- Be respectful and assume good faith.
- Answer the question that was actually asked before adding context.
- Cite sources for factual claims where possible.
- Keep replies under 200 words unless the topic demands depth.
- Never post the same reply to multiple threads.`

func defaultResources(deps Deps) []*mcp.ResourceDefinition {
	return []*mcp.ResourceDefinition{
		{
			Resource: mcpgo.Resource{
				URI:         ReplyGuidelinesURI,
				Name:        "Reply guidelines",
				Description: "House rules for drafting replies.",
				MIMEType:    "text/plain",
			},
			Key: "reply_guidelines",
			Read: func(context.Context, *mcp.CallContext) (string, error) {
				return replyGuidelines, nil
			},
		},
		{
			Resource: mcpgo.Resource{
				URI:         IdentityURI,
				Name:        "Authenticated identity",
				Description: "The Reddit identity document of the authenticated user.",
				MIMEType:    "application/json",
			},
			Read: func(ctx context.Context, call *mcp.CallContext) (string, error) {
				body, err := deps.Reddit.Me(ctx, call.Credentials)
				if err != nil {
					return "", err
				}
				return string(body), nil
			},
		},
	}
}
