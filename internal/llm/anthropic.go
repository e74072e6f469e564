package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/set-night/chatapp/internal/domain"
)

// Anthropic streams completions from the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic builds the provider. baseURL excludes the /v1 suffix; empty
// means the public API.
func NewAnthropic(apiKey, baseURL string) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(newHTTPClient()),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

func (p *Anthropic) Name() string { return "anthropic" }

func (p *Anthropic) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	messages, system := convertAnthropicMessages(req.Messages)
	if req.System != "" {
		if system != "" {
			system = req.System + "\n\n" + system
		} else {
			system = req.System
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstream, anthropicErrorMessage(err))
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			var c Chunk
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				c = Chunk{
					InputTokens:  int(ev.Message.Usage.InputTokens),
					OutputTokens: int(ev.Message.Usage.OutputTokens),
				}
			case anthropic.ContentBlockDeltaEvent:
				delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
				if !ok || delta.Text == "" {
					continue
				}
				c = Chunk{Text: delta.Text}
			case anthropic.MessageDeltaEvent:
				c = Chunk{OutputTokens: int(ev.Usage.OutputTokens), StopReason: string(ev.Delta.StopReason)}
			case anthropic.MessageStopEvent:
				send(ctx, ch, Chunk{Done: true})
				return
			default:
				continue
			}
			if !send(ctx, ch, c) {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("%w: %s", domain.ErrUpstream, anthropicErrorMessage(err))})
			return
		}
		send(ctx, ch, Chunk{Err: fmt.Errorf("%w: read stream: %w", domain.ErrStreamInterrupted, io.ErrUnexpectedEOF)})
	}()
	return ch, nil
}

// convertAnthropicMessages moves system turns into the system prompt.
func convertAnthropicMessages(messages []Message) ([]anthropic.MessageParam, string) {
	var (
		out    []anthropic.MessageParam
		system []string
	)
	for _, m := range messages {
		if m.Role == string(domain.RoleSystem) {
			system = append(system, m.Content)
			continue
		}

		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Images)+1)
		for _, img := range m.Images {
			blocks = append(blocks, anthropicImage(img))
		}
		if m.Content != "" || len(blocks) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}

		if m.Role == string(domain.RoleAssistant) {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, strings.Join(system, "\n\n")
}

// anthropicImage accepts base64 data URLs and plain URLs.
func anthropicImage(img string) anthropic.ContentBlockParamUnion {
	if rest, ok := strings.CutPrefix(img, "data:"); ok {
		mediaType, data, found := strings.Cut(rest, ";base64,")
		if found {
			return anthropic.NewImageBlockBase64(mediaType, data)
		}
	}
	return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img})
}

// anthropicErrorMessage reduces API errors to "status N: message".
func anthropicErrorMessage(err error) string {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil && body.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", apiErr.StatusCode, body.Error.Message)
	}
	return fmt.Sprintf("status %d", apiErr.StatusCode)
}

var _ Provider = (*Anthropic)(nil)
