package llm

import (
	"context"
	"net"
	"net/http"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/domain"
)

// Message is one turn of the prompt transcript.
type Message struct {
	Role    string
	Content string
	Images  []string
}

type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Chunk is one item of a completion stream. Token counts are the latest
// totals reported by the provider, zero when a chunk carries none. A stream
// that closes without a Done chunk was interrupted.
type Chunk struct {
	Text         string
	InputTokens  int
	OutputTokens int
	StopReason   string
	Done         bool
	Err          error
}

type Provider interface {
	Name() string
	// Stream starts a completion. The channel is closed when the stream ends
	// or ctx is cancelled.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]domain.AIModel, error)
}

// New builds the provider selected by cfg. It returns nil when no API key is
// configured.
func New(cfg *config.Config) Provider {
	if !cfg.HasAPIKey() {
		return nil
	}
	if cfg.LLMProvider == config.ProviderOpenAI {
		return NewOpenAI(cfg.APIKey, cfg.OpenAIBaseURL)
	}
	return NewAnthropic(cfg.APIKey, cfg.AnthropicBaseURL)
}

// newHTTPClient has no overall timeout; streams are bounded by the caller's
// context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: config.ProviderDialTimeout,
			}).DialContext,
			ResponseHeaderTimeout: config.ProviderHeaderTimeout,
			ForceAttemptHTTP2:     true,
		},
	}
}

func send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
