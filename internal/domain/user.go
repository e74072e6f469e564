package domain

import "time"

type User struct {
	ID                 string         `json:"id"`
	Email              string         `json:"email"`
	Name               string         `json:"name"`
	AvatarURL          *string        `json:"avatar_url"`
	Preferences        map[string]any `json:"preferences"`
	CustomInstructions string         `json:"custom_instructions"`
	CreatedAt          time.Time      `json:"created_at"`
	LastLogin          *time.Time     `json:"last_login"`
}
