package registries

import (
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/redditmcp/redditmcp/pkg/mcp"
)

func defaultPrompts() []*mcp.PromptDefinition {
	return []*mcp.PromptDefinition{
		summarizeSubredditPrompt(),
		draftReplyPrompt(),
	}
}

func summarizeSubredditPrompt() *mcp.PromptDefinition {
	return &mcp.PromptDefinition{
		Prompt: mcpgo.Prompt{
			Name:        "summarize_subreddit",
			Description: "Summarize the current discussion in a subreddit.",
			Arguments: []mcpgo.PromptArgument{
				{Name: "subreddit", Description: "Subreddit name without the r/ prefix.", Required: true},
			},
		},
		Template: "Use the get_subreddit_posts tool to fetch the current hot posts in " +
			"r/{{subreddit}}, then summarize the major discussion threads. Mention " +
			"recurring themes and anything unusually popular. Keep the summary under " +
			"300 words.",
	}
}

func draftReplyPrompt() *mcp.PromptDefinition {
	return &mcp.PromptDefinition{
		Prompt: mcpgo.Prompt{
			Name:        "draft_reply",
			Description: "Draft a reply to a Reddit post following the reply guidelines.",
			Arguments: []mcpgo.PromptArgument{
				{Name: "post_title", Description: "Title of the post to reply to.", Required: true},
				{Name: "post_body", Description: "Body of the post to reply to.", Required: false},
			},
		},
		Template: "Draft a reply to the following Reddit post.\n\n" +
			"Title: {{post_title}}\n" +
			"Body: {{post_body}}\n\n" +
			"Follow these guidelines:\n{{reply_guidelines}}",
	}
}
