package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/domain"
)

func TestOpenAIStream(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range []string{
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":""}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hi"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":" there"},"finish_reason":"stop"}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAI("test-key", srv.URL)
	ch, err := p.Stream(context.Background(), Request{
		Model:       "openai/gpt-4o",
		System:      "sys",
		MaxTokens:   100,
		Temperature: 0.5,
		Messages:    []Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)

	var text strings.Builder
	var in, out int
	chunks := collect(t, ch)
	for _, c := range chunks {
		require.NoError(t, c.Err)
		text.WriteString(c.Text)
		if c.InputTokens > 0 {
			in, out = c.InputTokens, c.OutputTokens
		}
	}
	last := chunks[len(chunks)-1]
	assert.True(t, last.Done)
	assert.Equal(t, "stop", last.StopReason)
	assert.Equal(t, "Hi there", text.String())
	assert.Equal(t, 9, in)
	assert.Equal(t, 2, out)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, true, got["stream"])
	assert.Equal(t, map[string]any{"include_usage": true}, got["stream_options"])
}

func TestOpenAIStreamSendsTemperatureForAnyModel(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	ch, err := NewOpenAI("k", srv.URL).Stream(context.Background(), Request{
		Model:       "google/gemini-2.5-pro",
		Temperature: 0.7,
		MaxTokens:   10,
		Messages:    []Message{{Role: "user", Content: "x"}},
	})
	require.NoError(t, err)
	collect(t, ch)
	assert.InDelta(t, 0.7, got["temperature"], 1e-6)
}

func TestOpenAIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL).Stream(context.Background(), Request{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "slow down")
}

func TestOpenAIListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		io.WriteString(w, `{"data":[
			{"id":"anthropic/claude-sonnet-4","name":"Claude Sonnet 4","pricing":{"prompt":"0.000003","completion":"0.000015"},"context_length":100000,"top_provider":{"context_length":200000}},
			{"id":"free/model","pricing":{"prompt":"0","completion":"0"},"context_length":8192}
		]}`)
	}))
	defer srv.Close()

	models, err := NewOpenAI("k", srv.URL).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.True(t, decimal.NewFromInt(3).Equal(models[0].PromptPrice))
	assert.True(t, decimal.NewFromInt(15).Equal(models[0].CompletionPrice))
	assert.Equal(t, 200000, models[0].ContextLength)
	assert.Equal(t, "free/model", models[1].Name)
	assert.True(t, models[1].IsFree())
}

func TestNewProvider(t *testing.T) {
	assert.Nil(t, New(&config.Config{LLMProvider: config.ProviderAnthropic}))

	p := New(&config.Config{LLMProvider: config.ProviderAnthropic, APIKey: "k"})
	require.NotNil(t, p)
	assert.Equal(t, "anthropic", p.Name())

	p = New(&config.Config{LLMProvider: config.ProviderOpenAI, APIKey: "k"})
	require.NotNil(t, p)
	_, ok := p.(ModelLister)
	assert.True(t, ok)
}
