package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	ID              string     `json:"id"`
	ConversationID  string     `json:"conversation_id"`
	Role            Role       `json:"role"`
	Content         string     `json:"content"`
	Images          []string   `json:"images"`
	Tokens          int        `json:"tokens"`
	FinishReason    *string    `json:"finish_reason"`
	CreatedAt       time.Time  `json:"created_at"`
	EditedAt        *time.Time `json:"edited_at"`
	ParentMessageID *string    `json:"parent_message_id"`
}

type NewMessage struct {
	ConversationID string
	Role           Role
	Content        string
	Images         []string
	Tokens         int
	FinishReason   string
}
