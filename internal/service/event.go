package service

import "encoding/json"

type EventType string

const (
	EventContent EventType = "content"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event is one server-sent event of a completion stream.
type Event struct {
	Type         EventType
	Text         string
	MessageID    string
	InputTokens  int
	OutputTokens int
	Error        string
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventContent:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Text string    `json:"text"`
		}{e.Type, e.Text})
	case EventDone:
		return json.Marshal(struct {
			Type         EventType `json:"type"`
			MessageID    string    `json:"messageId"`
			InputTokens  int       `json:"inputTokens"`
			OutputTokens int       `json:"outputTokens"`
		}{e.Type, e.MessageID, e.InputTokens, e.OutputTokens})
	default:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Error string    `json:"error"`
		}{EventError, e.Error})
	}
}
