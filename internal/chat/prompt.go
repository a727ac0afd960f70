package chat

import "strings"

// DefaultSystemPrompt instructs the model to stay within supplied context.
const DefaultSystemPrompt = "You are a helpful assistant. Answer using the provided conversation " +
	"context and verified tool data when available. Do not speculate beyond them."

// composeSystemMessage assembles the system prompt with optional history
// snippets and tool context. Absent sections are marked <none> so the model
// never mistakes user input for verified data.
func composeSystemMessage(base, historySnippets, toolContext string) string {
	var b strings.Builder
	if base == "" {
		base = DefaultSystemPrompt
	}
	b.WriteString(base)

	if historySnippets != "" {
		b.WriteString("\nConversation context:\n")
		b.WriteString(historySnippets)
	} else {
		b.WriteString("\nConversation context: <none>")
	}

	if toolContext != "" {
		b.WriteString("\nVerified MCP data:\n")
		b.WriteString(toolContext)
	} else {
		b.WriteString("\nVerified MCP data: <none>")
	}
	return b.String()
}
