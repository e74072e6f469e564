package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/domain"
	"github.com/set-night/chatapp/internal/llm"
	"github.com/set-night/chatapp/internal/metrics"
)

type ConversationRepository interface {
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	RecordExchange(ctx context.Context, id string, tokens int, at time.Time) error
	SetTitle(ctx context.Context, id, title string) error
}

type MessageRepository interface {
	Append(ctx context.Context, params domain.NewMessage) (*domain.Message, error)
	Transcript(ctx context.Context, conversationID string) ([]llm.Message, error)
}

type UsageRepository interface {
	Record(ctx context.Context, rec *domain.UsageRecord) error
}

type ModelLookup interface {
	Lookup(ctx context.Context, id string) (*domain.AIModel, error)
}

type RelayDeps struct {
	Provider      llm.Provider
	Conversations ConversationRepository
	Messages      MessageRepository
	Usage         UsageRepository
	Models        ModelLookup
	Metrics       *metrics.Metrics
	DefaultModel  string
}

// Relay turns a user message into a streamed assistant reply.
type Relay struct {
	provider      llm.Provider
	conversations ConversationRepository
	messages      MessageRepository
	usage         UsageRepository
	models        ModelLookup
	metrics       *metrics.Metrics
	defaultModel  string
	now           func() time.Time
}

func NewRelay(deps RelayDeps) *Relay {
	return &Relay{
		provider:      deps.Provider,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		usage:         deps.Usage,
		models:        deps.Models,
		metrics:       deps.Metrics,
		defaultModel:  deps.DefaultModel,
		now:           time.Now,
	}
}

func (r *Relay) Configured() bool { return r.provider != nil }

type SendRequest struct {
	ConversationID string
	UserID         string
	Content        string
	Images         []string
	Model          string
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUserMessagePersisted
	PhaseStreaming
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUserMessagePersisted:
		return "user_message_persisted"
	case PhaseStreaming:
		return "streaming"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exchange is one send in progress. Begin validates the request and
// persists the user message; Stream relays the reply.
type Exchange struct {
	relay         *Relay
	conversation  *domain.Conversation
	userID        string
	userMessage   *domain.Message
	request       llm.Request
	firstExchange bool
	phase         Phase
}

// Begin runs every check that can fail before streaming starts. Errors
// returned here mean nothing was sent to the client yet.
func (r *Relay) Begin(ctx context.Context, req SendRequest) (*Exchange, error) {
	if r.provider == nil {
		return nil, domain.ErrProviderNotConfigured
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.ErrEmptyContent
	}

	conv, err := r.conversations.Get(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.IsDeleted {
		return nil, domain.ErrConversationNotFound
	}

	model := req.Model
	if model == "" {
		model = conv.Model
	}
	if model == "" {
		model = r.defaultModel
	}

	userID := req.UserID
	if userID == "" {
		userID = conv.UserID
	}

	ex := &Exchange{relay: r, conversation: conv, userID: userID, phase: PhaseIdle}

	ex.userMessage, err = r.messages.Append(ctx, domain.NewMessage{
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        req.Content,
		Images:         req.Images,
	})
	if err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	ex.phase = PhaseUserMessagePersisted

	transcript, err := r.messages.Transcript(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	ex.firstExchange = len(transcript) <= 2

	ex.request = llm.Request{
		Model:       model,
		System:      conv.Settings.SystemPrompt,
		Messages:    transcript,
		MaxTokens:   conv.Settings.MaxTokensOr(config.DefaultMaxTokens),
		Temperature: conv.Settings.TemperatureOr(config.DefaultTemperature),
	}
	return ex, nil
}

func (e *Exchange) Phase() Phase { return e.phase }

func (e *Exchange) Model() string { return e.request.Model }

// Request is the provider request built by Begin.
func (e *Exchange) Request() llm.Request { return e.request }

// Stream relays the provider reply through emit and persists the result.
// A failed emit is treated as a client disconnect: the upstream call is
// cancelled and nothing more is written.
func (e *Exchange) Stream(ctx context.Context, emit func(Event) error) error {
	r := e.relay
	e.phase = PhaseStreaming
	started := r.now()
	r.metrics.StreamStarted()

	var inputTokens, outputTokens int
	finish := func(outcome string) {
		r.metrics.ExchangeFinished(e.request.Model, outcome, inputTokens, outputTokens, r.now().Sub(started))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := r.provider.Stream(streamCtx, e.request)
	if err != nil {
		finish(metrics.OutcomeFailed)
		return e.fail(emit, err)
	}

	var (
		text       strings.Builder
		stopReason string
		done       bool
	)
	for c := range chunks {
		if c.Err != nil {
			cancel()
			finish(metrics.OutcomeFailed)
			return e.fail(emit, c.Err)
		}
		if c.InputTokens > 0 {
			inputTokens = c.InputTokens
		}
		if c.OutputTokens > 0 {
			outputTokens = c.OutputTokens
		}
		if c.StopReason != "" {
			stopReason = c.StopReason
		}
		if c.Text != "" {
			text.WriteString(c.Text)
			if err := emit(Event{Type: EventContent, Text: c.Text}); err != nil {
				cancel()
				e.phase = PhaseFailed
				finish(metrics.OutcomeCancelled)
				slog.Info("client went away during stream", "conversation_id", e.conversation.ID, "error", err)
				return fmt.Errorf("write event: %w", err)
			}
		}
		if c.Done {
			done = true
			break
		}
	}

	if !done {
		if ctx.Err() != nil {
			e.phase = PhaseFailed
			finish(metrics.OutcomeCancelled)
			return ctx.Err()
		}
		finish(metrics.OutcomeFailed)
		return e.fail(emit, domain.ErrStreamInterrupted)
	}

	// The reply is complete; persist it even if the client has gone.
	persistCtx := context.WithoutCancel(ctx)
	reply, err := e.complete(persistCtx, text.String(), stopReason, inputTokens, outputTokens)
	if err != nil {
		finish(metrics.OutcomeFailed)
		return e.fail(emit, err)
	}

	e.phase = PhaseCompleted
	finish(metrics.OutcomeCompleted)

	if err := emit(Event{
		Type:         EventDone,
		MessageID:    reply.ID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (e *Exchange) complete(ctx context.Context, content, stopReason string, inputTokens, outputTokens int) (*domain.Message, error) {
	r := e.relay
	conv := e.conversation

	reply, err := r.messages.Append(ctx, domain.NewMessage{
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        content,
		Tokens:         outputTokens,
		FinishReason:   stopReason,
	})
	if err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	if err := r.conversations.RecordExchange(ctx, conv.ID, inputTokens+outputTokens, r.now()); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	if e.firstExchange {
		if err := r.conversations.SetTitle(ctx, conv.ID, AutoTitle(e.userMessage.Content)); err != nil {
			slog.Error("set conversation title", "error", err, "conversation_id", conv.ID)
		}
	}

	e.recordUsage(ctx, reply.ID, inputTokens, outputTokens)
	return reply, nil
}

func (e *Exchange) recordUsage(ctx context.Context, messageID string, inputTokens, outputTokens int) {
	r := e.relay
	if r.usage == nil {
		return
	}

	rec := &domain.UsageRecord{
		UserID:         e.userID,
		ConversationID: e.conversation.ID,
		MessageID:      messageID,
		Model:          e.request.Model,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
	}
	if r.models != nil {
		if model, err := r.models.Lookup(ctx, e.request.Model); err == nil {
			rec.CostEstimate = model.EstimateCost(inputTokens, outputTokens)
		}
	}
	if err := r.usage.Record(ctx, rec); err != nil {
		slog.Error("record usage", "error", err, "conversation_id", e.conversation.ID)
	}
}

func (e *Exchange) fail(emit func(Event) error, err error) error {
	e.phase = PhaseFailed
	slog.Error("completion failed", "error", err, "conversation_id", e.conversation.ID, "model", e.request.Model)

	msg := "Failed to generate response"
	if errors.Is(err, domain.ErrUpstream) || errors.Is(err, domain.ErrStreamInterrupted) {
		msg = err.Error()
	}
	if emitErr := emit(Event{Type: EventError, Error: msg}); emitErr != nil {
		slog.Debug("write error event", "error", emitErr)
	}
	return err
}

// AutoTitle derives a conversation title from the first user message.
func AutoTitle(content string) string {
	if utf8.RuneCountInString(content) <= config.AutoTitleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:config.AutoTitleMaxRunes]) + "..."
}
