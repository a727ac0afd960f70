package memory

import (
	"time"

	"github.com/chatloom/chatloom/internal/structured"
)

// Message is a single conversation turn. Components are only populated on
// assistant messages.
type Message struct {
	ID          int64
	SessionID   string
	Role        string
	Content     string
	ContentType string
	Components  []structured.Component
	Timestamp   time.Time
}

// Conversation is a session between one user and the assistant. Messages are
// loaded on demand; listing endpoints return metadata only.
type Conversation struct {
	SessionID    string
	UserID       string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Messages     []Message
}
