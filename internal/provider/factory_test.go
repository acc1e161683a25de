package provider_test

import (
	"testing"

	"github.com/julianshen/conceptmap/internal/config"
	"github.com/julianshen/conceptmap/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import sub-packages to trigger init() registration
	_ "github.com/julianshen/conceptmap/internal/provider/ollama"
	_ "github.com/julianshen/conceptmap/internal/provider/openai"
)

func TestNewProviderOpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-openai-key")

	cfg := config.DefaultConfig()

	p, err := provider.NewProvider(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewProviderOpenAIMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := config.DefaultConfig()

	_, err := provider.NewProvider(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewProviderNamedCompatible(t *testing.T) {
	t.Setenv("LOCAL_VLLM_API_KEY", "k")

	cfg := config.DefaultConfig()
	cfg.Provider.Default = "local-vllm"
	cfg.Provider.OpenAI = append(cfg.Provider.OpenAI, config.OpenAICompatibleConfig{
		Name:    "local-vllm",
		BaseURL: "http://localhost:8000/v1/",
	})

	p, err := provider.NewProvider(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewProviderOllamaNeedsNoKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Default = "ollama"
	cfg.Provider.Ollama.BaseURL = ""

	p, err := provider.NewProvider(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewProviderUnknown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Default = "nonexistent"

	_, err := provider.NewProvider(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
