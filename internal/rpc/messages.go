package rpc

import (
	"time"

	"github.com/chatloom/chatloom/internal/structured"
)

// ChatRequest is the payload for a chat turn. Missing identifiers are
// generated server-side and echoed back in the response.
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatData wraps the component payload embedded in a chat response.
type ChatData struct {
	Components []structured.Component `json:"components"`
}

// ChatResponse carries the assistant's reply.
type ChatResponse struct {
	UserID      string   `json:"user_id"`
	SessionID   string   `json:"session_id"`
	Answer      string   `json:"answer"`
	ContentType string   `json:"content_type"`
	Model       string   `json:"model,omitempty"`
	Data        ChatData `json:"data"`
}

// Message is one conversation turn as exposed over the API.
type Message struct {
	Role        string                 `json:"role"`
	Content     string                 `json:"content"`
	ContentType string                 `json:"content_type"`
	Components  []structured.Component `json:"components,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Session is conversation metadata, with messages when requested singly.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages,omitempty"`
}

// ToolInfo describes one tool exposed by a configured MCP server.
type ToolInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema interface{} `json:"input_schema,omitempty"`
}

// ServerTools lists a server's tools, or the error that prevented listing.
type ServerTools struct {
	Server string     `json:"server"`
	Tools  []ToolInfo `json:"tools,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
