//go:build integration

package ollama

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/julianshen/conceptmap/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://localhost:11434"

func skipIfOllamaNotRunning(t *testing.T) {
	t.Helper()
	if !NewClient(testBaseURL).IsRunning(context.Background()) {
		t.Skip("Ollama is not running at " + testBaseURL)
	}
}

func TestIntegration_JSONMode(t *testing.T) {
	skipIfOllamaNotRunning(t)
	model := os.Getenv("OLLAMA_TEST_MODEL")
	if model == "" {
		model = "llama3.1"
	}

	ch, err := New(testBaseURL).Stream(context.Background(), provider.CompletionRequest{
		Model:          model,
		System:         "Reply with a JSON object only.",
		Messages:       []provider.Message{provider.NewUserMessage(`Return {"ok": true}.`)},
		ResponseFormat: provider.FormatJSON,
	})
	require.NoError(t, err)

	var b strings.Builder
	for evt := range ch {
		require.NotEqual(t, "error", evt.Type, "stream error: %v", evt.Error)
		if evt.Type == "text_delta" {
			b.WriteString(evt.Text)
		}
	}
	assert.Contains(t, b.String(), "ok")
}
