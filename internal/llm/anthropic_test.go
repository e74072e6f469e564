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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/chatapp/internal/domain"
)

func collect(t *testing.T, ch <-chan Chunk) []Chunk {
	t.Helper()
	var chunks []Chunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks
}

func sseEvents(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		var typ struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(e), &typ)
		fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", typ.Type, e)
	}
	return b.String()
}

func eventStream(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	io.WriteString(w, sseEvents(events...))
}

func TestAnthropicStream(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		eventStream(w,
			`{"type":"message_start","message":{"usage":{"input_tokens":12,"output_tokens":1}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			`{"type":"ping"}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":7}}`,
			`{"type":"message_stop"}`,
		)
	}))
	defer srv.Close()

	p := NewAnthropic("test-key", srv.URL)
	ch, err := p.Stream(context.Background(), Request{
		Model:       "claude-sonnet-4-5-20250929",
		System:      "be brief",
		MaxTokens:   4096,
		Temperature: 1,
		Messages: []Message{
			{Role: "system", Content: "stored system"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "again"},
		},
	})
	require.NoError(t, err)

	chunks := collect(t, ch)
	var text strings.Builder
	var in, out int
	var stop string
	for _, c := range chunks {
		require.NoError(t, c.Err)
		text.WriteString(c.Text)
		if c.InputTokens > 0 {
			in = c.InputTokens
		}
		if c.OutputTokens > 0 {
			out = c.OutputTokens
		}
		if c.StopReason != "" {
			stop = c.StopReason
		}
	}
	assert.Equal(t, "Hello", text.String())
	assert.Equal(t, 12, in)
	assert.Equal(t, 7, out)
	assert.Equal(t, "end_turn", stop)
	assert.True(t, chunks[len(chunks)-1].Done)

	assert.Equal(t, true, got["stream"])
	assert.EqualValues(t, 4096, got["max_tokens"])
	assert.EqualValues(t, 1, got["temperature"])
	system, ok := got["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief\n\nstored system", system[0].(map[string]any)["text"])

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
}

func TestAnthropicStreamInterrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventStream(w,
			`{"type":"message_start","message":{"usage":{"input_tokens":3}}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"partial"}}`,
		)
	}))
	defer srv.Close()

	ch, err := NewAnthropic("k", srv.URL).Stream(context.Background(), Request{Model: "m", MaxTokens: 10})
	require.NoError(t, err)

	chunks := collect(t, ch)
	last := chunks[len(chunks)-1]
	assert.False(t, last.Done)
	assert.ErrorIs(t, last.Err, domain.ErrStreamInterrupted)
}

func TestAnthropicStreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventStream(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer srv.Close()

	ch, err := NewAnthropic("k", srv.URL).Stream(context.Background(), Request{Model: "m", MaxTokens: 10})
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.Len(t, chunks, 1)
	assert.ErrorIs(t, chunks[0].Err, domain.ErrUpstream)
	assert.Contains(t, chunks[0].Err.Error(), "Overloaded")
}

func TestAnthropicStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	_, err := NewAnthropic("bad", srv.URL).Stream(context.Background(), Request{Model: "m", MaxTokens: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "invalid x-api-key")
	assert.Contains(t, err.Error(), "401")
}

func TestAnthropicImageBlocks(t *testing.T) {
	var got struct {
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type   string `json:"type"`
				Text   string `json:"text"`
				Source struct {
					Type      string `json:"type"`
					MediaType string `json:"media_type"`
					Data      string `json:"data"`
					URL       string `json:"url"`
				} `json:"source"`
			} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		eventStream(w, `{"type":"message_stop"}`)
	}))
	defer srv.Close()

	ch, err := NewAnthropic("k", srv.URL).Stream(context.Background(), Request{
		Model:     "m",
		MaxTokens: 10,
		Messages: []Message{
			{Role: "user", Content: "what is this", Images: []string{"data:image/png;base64,QUJD", "https://example.com/a.jpg"}},
		},
	})
	require.NoError(t, err)
	collect(t, ch)

	require.Len(t, got.Messages, 1)
	blocks := got.Messages[0].Content
	require.Len(t, blocks, 3)
	assert.Equal(t, "image", blocks[0].Type)
	assert.Equal(t, "base64", blocks[0].Source.Type)
	assert.Equal(t, "image/png", blocks[0].Source.MediaType)
	assert.Equal(t, "QUJD", blocks[0].Source.Data)
	assert.Equal(t, "url", blocks[1].Source.Type)
	assert.Equal(t, "https://example.com/a.jpg", blocks[1].Source.URL)
	assert.Equal(t, "text", blocks[2].Type)
	assert.Equal(t, "what is this", blocks[2].Text)
}

func TestStreamStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventStream(w, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"a"}}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewAnthropic("k", srv.URL).Stream(ctx, Request{Model: "m", MaxTokens: 10})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "a", first.Text)
	cancel()
	for range ch {
	}
}
