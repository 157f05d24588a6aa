package models

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a chat session.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMode selects how a chat message is answered.
type ChatMode string

const (
	ModeNormal     ChatMode = "normal"
	ModeRegenerate ChatMode = "regenerate"
)

// Session groups the turns of one conversation.
type Session struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	LastQuestion string    `json:"last_question,omitempty"`
	TurnCount    int       `json:"turn_count"`
}
