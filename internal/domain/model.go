package domain

import "github.com/shopspring/decimal"

var tokensPerMillion = decimal.NewFromInt(1_000_000)

type AIModel struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	PromptPrice     decimal.Decimal `json:"prompt_price"`     // per 1M tokens
	CompletionPrice decimal.Decimal `json:"completion_price"` // per 1M tokens
	ContextLength   int             `json:"context_length"`
	UsageCount      int64           `json:"usage_count"`
}

func (m *AIModel) IsFree() bool {
	return m.PromptPrice.IsZero() && m.CompletionPrice.IsZero()
}

// EstimateCost prices one exchange in USD.
func (m *AIModel) EstimateCost(inputTokens, outputTokens int) decimal.Decimal {
	in := m.PromptPrice.Mul(decimal.NewFromInt(int64(inputTokens)))
	out := m.CompletionPrice.Mul(decimal.NewFromInt(int64(outputTokens)))
	return in.Add(out).Div(tokensPerMillion)
}
