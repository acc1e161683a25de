package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julianshen/conceptmap/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamNDJSON(t *testing.T) {
	var captured apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":"{\"a\":"},"done":false}
{"model":"llama3.1","message":{"role":"assistant","content":"1}"},"done":false}
{"model":"llama3.1","message":{"role":"assistant","content":""},"done":true,"done_reason":"length","prompt_eval_count":12,"eval_count":4}
`))
	}))
	defer server.Close()

	p := New(server.URL + "/")
	ch, err := p.Stream(context.Background(), provider.CompletionRequest{
		Model:          "llama3.1",
		System:         "sys",
		Messages:       []provider.Message{provider.NewUserMessage("hello")},
		ResponseFormat: provider.FormatJSON,
		MaxTokens:      256,
	})
	require.NoError(t, err)

	var text string
	var usage provider.StreamEvent
	var stopped bool
	var stopReason string
	for evt := range ch {
		switch evt.Type {
		case "text_delta":
			text += evt.Text
		case "usage":
			usage = evt
		case "stop":
			stopped = true
			stopReason = evt.StopReason
		case "error":
			t.Fatalf("unexpected error: %v", evt.Error)
		}
	}

	assert.Equal(t, `{"a":1}`, text)
	assert.True(t, stopped)
	assert.Equal(t, provider.StopLength, stopReason)
	assert.Equal(t, 12, usage.InputTokens)
	assert.Equal(t, 4, usage.OutputTokens)

	assert.Equal(t, "json", captured.Format)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	require.NotNil(t, captured.Options)
	assert.Equal(t, 256, captured.Options.NumPredict)
}

func TestStreamServerErrorLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error":"model not found"}` + "\n"))
	}))
	defer server.Close()

	ch, err := New(server.URL).Stream(context.Background(), provider.CompletionRequest{Model: "x"})
	require.NoError(t, err)

	var streamErr error
	for evt := range ch {
		if evt.Type == "error" {
			streamErr = evt.Error
		}
	}
	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "model not found")
}

func TestStreamNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL).Stream(context.Background(), provider.CompletionRequest{Model: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
