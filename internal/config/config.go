// Package config loads and saves the conceptmap TOML configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config represents the top-level application configuration.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Output   OutputConfig   `toml:"output"`
	Store    StoreConfig    `toml:"store"`
}

// ProviderConfig holds settings for the generation oracle backend.
type ProviderConfig struct {
	Default           string                   `toml:"default"`
	Model             string                   `toml:"model"`
	MaxTokens         int                      `toml:"max_tokens"`
	Temperature       *float64                 `toml:"temperature"`
	RequestsPerMinute int                      `toml:"requests_per_minute"`
	OpenAI            []OpenAICompatibleConfig `toml:"openai_compatible"`
	Ollama            OllamaConfig             `toml:"ollama"`
}

// OpenAICompatibleConfig holds settings for an OpenAI-compatible provider.
type OpenAICompatibleConfig struct {
	Name         string            `toml:"name"`
	BaseURL      string            `toml:"base_url"`
	APIKeySource string            `toml:"api_key_source"`
	APIKey       string            `toml:"api_key"`
	ExtraHeaders map[string]string `toml:"extra_headers"`
}

// OllamaConfig holds settings for a local Ollama server.
type OllamaConfig struct {
	BaseURL string `toml:"base_url"`
}

// PipelineConfig controls the synthesis pipeline and the source indexer.
type PipelineConfig struct {
	MaxIterations   int      `toml:"max_iterations"`
	Subdir          string   `toml:"subdir"`
	Extensions      []string `toml:"extensions"`
	Ignore          []string `toml:"ignore"`
	MaxDeclarations int      `toml:"max_declarations"`
	SnippetFiles    int      `toml:"snippet_files"`
	SnippetLines    int      `toml:"snippet_lines"`
	SnippetBytes    int      `toml:"snippet_bytes"`
	ParseWorkers    int      `toml:"parse_workers"`
}

// OutputConfig controls where artifacts are written and published.
type OutputConfig struct {
	Dir         string `toml:"dir"`
	ConceptDocs bool   `toml:"concept_docs"`
	Registry    string `toml:"registry"`
	Report      string `toml:"report"` // markdown or json
}

// StoreConfig controls the SQLite run history.
type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// DefaultConfig returns a Config populated with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Default:   "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 4096,
			OpenAI: []OpenAICompatibleConfig{
				{
					Name:         "openai",
					BaseURL:      "https://api.openai.com/v1",
					APIKeySource: "env",
				},
			},
			Ollama: OllamaConfig{BaseURL: "http://localhost:11434"},
		},
		Pipeline: PipelineConfig{
			MaxIterations:   5,
			Subdir:          "src",
			Extensions:      []string{".ts", ".tsx", ".js", ".jsx", ".go"},
			MaxDeclarations: 400,
			SnippetFiles:    3,
			SnippetLines:    120,
			SnippetBytes:    6000,
			ParseWorkers:    4,
		},
		Output: OutputConfig{
			Dir:         "concept-model",
			ConceptDocs: true,
			Registry:    "~/.config/conceptmap/registry.json",
			Report:      "markdown",
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    "~/.config/conceptmap/history.db",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "conceptmap", "config.toml"), nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
