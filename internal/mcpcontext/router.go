package mcpcontext

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatloom/chatloom/internal/config"
)

// Router decides which tool servers, and which of their tools, are relevant
// for a given prompt.
type Router struct {
	servers          []config.MCPServerConfig
	fallbackKeywords []string
}

func NewRouter(servers []config.MCPServerConfig, fallbackKeywords []string) *Router {
	cleaned := make([]string, 0, len(fallbackKeywords))
	for _, kw := range fallbackKeywords {
		if kw != "" {
			cleaned = append(cleaned, strings.ToLower(kw))
		}
	}
	return &Router{servers: servers, fallbackKeywords: cleaned}
}

// SelectServers returns the servers whose trigger keywords appear in the
// prompt. A server without keywords inherits the global fallback list; an
// empty effective list means the server is always relevant.
func (r *Router) SelectServers(prompt string) []config.MCPServerConfig {
	lowered := strings.ToLower(prompt)

	var selected []config.MCPServerConfig
	for _, server := range r.servers {
		keywords := lowerNonEmpty(server.TriggerKeywords)
		if len(keywords) == 0 {
			keywords = r.fallbackKeywords
		}
		if len(keywords) == 0 || anySubstring(lowered, keywords) {
			selected = append(selected, server)
		}
	}
	return selected
}

// SelectTools narrows a server's tool list to those relevant for the prompt.
// Keyword-gated matching runs first: a keyword must appear both in the prompt
// and in the tool's name or description. When that yields nothing, any token
// of the tool name (underscores read as spaces) appearing in the prompt is
// enough. When that also yields nothing, every tool is eligible so a matched
// server is never skipped outright.
func (r *Router) SelectTools(prompt string, tools []mcp.Tool, server config.MCPServerConfig) []mcp.Tool {
	if len(tools) == 0 {
		return nil
	}
	lowered := strings.ToLower(prompt)

	keywords := lowerNonEmpty(server.TriggerKeywords)
	if len(keywords) == 0 {
		keywords = r.fallbackKeywords
	}

	var matched []mcp.Tool
	for _, tool := range tools {
		haystack := strings.ToLower(tool.Name + " " + tool.Description)
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) && strings.Contains(haystack, kw) {
				matched = append(matched, tool)
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}

	for _, tool := range tools {
		name := strings.ToLower(strings.ReplaceAll(tool.Name, "_", " "))
		for _, token := range strings.Fields(name) {
			if strings.Contains(lowered, token) {
				matched = append(matched, tool)
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}

	return tools
}

func lowerNonEmpty(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if kw != "" {
			out = append(out, strings.ToLower(kw))
		}
	}
	return out
}

func anySubstring(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
