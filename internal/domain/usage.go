package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type UsageRecord struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	MessageID      string          `json:"message_id"`
	Model          string          `json:"model"`
	InputTokens    int             `json:"input_tokens"`
	OutputTokens   int             `json:"output_tokens"`
	CostEstimate   decimal.Decimal `json:"cost_estimate"`
	CreatedAt      time.Time       `json:"created_at"`
}

type UsageSummary struct {
	UserID       string          `json:"user_id"`
	Exchanges    int64           `json:"exchanges"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	CostEstimate decimal.Decimal `json:"cost_estimate"`
	ByModel      []ModelUsage    `json:"by_model"`
}

type ModelUsage struct {
	Model        string          `json:"model"`
	Exchanges    int64           `json:"exchanges"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	CostEstimate decimal.Decimal `json:"cost_estimate"`
}
