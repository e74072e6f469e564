package domain

import "time"

type Conversation struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ProjectID     *string    `json:"project_id"`
	Title         string     `json:"title"`
	Model         string     `json:"model"`
	Settings      Settings   `json:"settings"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
	IsArchived    bool       `json:"is_archived"`
	IsPinned      bool       `json:"is_pinned"`
	IsDeleted     bool       `json:"is_deleted"`
	TokenCount    int64      `json:"token_count"`
	MessageCount  int64      `json:"message_count"`
}

// ActivityAt is the timestamp used for recency ordering and date grouping.
func (c *Conversation) ActivityAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

type CreateConversation struct {
	UserID    string
	ProjectID *string
	Title     string
	Model     string
	Settings  *Settings
}

// ConversationUpdate lists the fields a partial update may touch. Nil fields
// are left unchanged. ClearTitle and ClearModel store NULL and win over
// Title and Model.
type ConversationUpdate struct {
	Title      *string
	Model      *string
	ClearTitle bool
	ClearModel bool
	Settings   *Settings
	Archived   *bool
	Pinned     *bool
}

func (u ConversationUpdate) IsEmpty() bool {
	return u.Title == nil && u.Model == nil && !u.ClearTitle && !u.ClearModel &&
		u.Settings == nil && u.Archived == nil && u.Pinned == nil
}
