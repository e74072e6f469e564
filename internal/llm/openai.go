package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/set-night/chatapp/internal/domain"
)

const openAIBaseURL = "https://api.openai.com/v1"

var tokensPerMillion = decimal.NewFromInt(1_000_000)

// OpenAI streams completions from any OpenAI-compatible endpoint, including
// OpenRouter.
type OpenAI struct {
	apiKey     string
	baseURL    string
	client     *openai.Client
	httpClient *http.Client
}

func NewOpenAI(apiKey, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := newHTTPClient()
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient

	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    baseURL,
		client:     openai.NewClientWithConfig(cfg),
		httpClient: httpClient,
	}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:         req.Model,
		Messages:      convertOpenAIMessages(req.System, req.Messages),
		MaxTokens:     req.MaxTokens,
		Temperature:   float32(req.Temperature),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstream, openAIErrorMessage(err))
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		var stopReason string
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(ctx, ch, Chunk{Done: true, StopReason: stopReason})
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				send(ctx, ch, Chunk{Err: fmt.Errorf("%w: %s", domain.ErrUpstream, openAIErrorMessage(err))})
				return
			}

			var c Chunk
			if len(resp.Choices) > 0 {
				c.Text = resp.Choices[0].Delta.Content
				if reason := resp.Choices[0].FinishReason; reason != "" {
					stopReason = string(reason)
					c.StopReason = stopReason
				}
			}
			if resp.Usage != nil {
				c.InputTokens = resp.Usage.PromptTokens
				c.OutputTokens = resp.Usage.CompletionTokens
			}
			if c == (Chunk{}) {
				continue
			}
			if !send(ctx, ch, c) {
				return
			}
		}
	}()
	return ch, nil
}

func convertOpenAIMessages(system string, messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		if len(m.Images) == 0 {
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, len(m.Images)+1)
		if m.Content != "" {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: m.Content})
		}
		for _, img := range m.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: img},
			})
		}
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts})
	}
	return out
}

func openAIErrorMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("status %d: %v", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return err.Error()
}

// ListModels reads the /models listing. OpenRouter includes per-token
// pricing and context length; plain OpenAI endpoints leave them zero.
func (p *OpenAI) ListModels(ctx context.Context) ([]domain.AIModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch models: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var result struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Pricing     struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
			ContextLength int `json:"context_length"`
			TopProvider   struct {
				ContextLength int `json:"context_length"`
			} `json:"top_provider"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse models: %w", err)
	}

	models := make([]domain.AIModel, 0, len(result.Data))
	for _, m := range result.Data {
		ctxLen := m.ContextLength
		if m.TopProvider.ContextLength > 0 {
			ctxLen = m.TopProvider.ContextLength
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}

		// Prices are per token, convert to per 1M tokens
		models = append(models, domain.AIModel{
			ID:              m.ID,
			Name:            name,
			Description:     m.Description,
			PromptPrice:     parsePrice(m.Pricing.Prompt).Mul(tokensPerMillion),
			CompletionPrice: parsePrice(m.Pricing.Completion).Mul(tokensPerMillion),
			ContextLength:   ctxLen,
		})
	}
	return models, nil
}

func parsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

var (
	_ Provider    = (*OpenAI)(nil)
	_ ModelLister = (*OpenAI)(nil)
)
