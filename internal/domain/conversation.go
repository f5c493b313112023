package domain

import "time"

// Message roles stored on chat messages.
const (
	MessageRoleUser      = 0
	MessageRoleAssistant = 1
	MessageRoleSystem    = 2
)

// Conversation groups the chat messages exchanged with one agent.
type Conversation struct {
	ID        string
	AgentID   string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is a single persisted message within a conversation. Assistant
// messages are only persisted after their stream completed normally.
type ChatMessage struct {
	ID             string
	ConversationID string
	AgentID        string
	Role           int
	Content        string
	CreatedAt      time.Time
}
