package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/conceptmap/internal/artifact"
	"github.com/julianshen/conceptmap/internal/config"
	"github.com/julianshen/conceptmap/internal/store"
	"github.com/julianshen/conceptmap/internal/synth"
)

// execute runs the root command with a config path that does not exist,
// so every command sees the defaults.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersionString(t *testing.T) {
	s := versionString()
	assert.Contains(t, s, "conceptmap")
	assert.Contains(t, s, version)
	assert.Contains(t, s, commit)
	assert.Contains(t, s, date)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "conceptmap dev")
}

func TestRootSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"generate", "history", "registry", "init", "version"})
}

func TestGenerateFlagDefaults(t *testing.T) {
	cmd := generateCmd()
	assert.Equal(t, "generate [repo]", cmd.Use)

	shape := cmd.Flags().Lookup("shape")
	require.NotNil(t, shape)
	assert.Equal(t, "model", shape.DefValue)

	docs := cmd.Flags().Lookup("docs")
	require.NotNil(t, docs)
	assert.Equal(t, "true", docs.DefValue)

	for _, name := range []string{"out", "clean", "verbose", "max-iterations", "name", "no-publish",
		"rationalize", "subdir", "ext", "registry", "yes", "report"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestBuildOptionsFromConfig(t *testing.T) {
	cmd := generateCmd()
	cfg := config.DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Registry = "/tmp/registry.json"

	opts, err := buildOptions(cmd, cfg, generateFlags{shape: "model"}, "/repo")
	require.NoError(t, err)

	assert.Equal(t, "/repo", opts.Root)
	assert.Equal(t, cfg.Output.Dir, opts.OutDir)
	assert.Equal(t, synth.ShapeModel, opts.Shape)
	assert.Equal(t, 5, opts.MaxIterations)
	assert.Equal(t, "src", opts.Subdir)
	assert.Equal(t, cfg.Pipeline.Extensions, opts.Extensions)
	assert.Equal(t, synth.SnippetLimits{Files: 3, Lines: 120, Bytes: 6000}, opts.Snippets)
	assert.True(t, opts.ConceptDocs)
	assert.True(t, opts.Publish)
	assert.Equal(t, "/tmp/registry.json", opts.RegistryPath)
	assert.NotEmpty(t, opts.RunID)
}

func TestBuildOptionsFlagsOverrideConfig(t *testing.T) {
	cmd := generateCmd()
	dir := t.TempDir()
	require.NoError(t, cmd.Flags().Set("out", dir))
	require.NoError(t, cmd.Flags().Set("max-iterations", "2"))
	require.NoError(t, cmd.Flags().Set("docs", "false"))
	require.NoError(t, cmd.Flags().Set("subdir", "lib"))
	require.NoError(t, cmd.Flags().Set("ext", ".ts,**/*.go"))

	f := generateFlags{
		out:           dir,
		maxIterations: 2,
		docs:          false,
		subdir:        "lib",
		extensions:    []string{".ts", "**/*.go"},
		shape:         "flat",
		noPublish:     true,
	}
	opts, err := buildOptions(cmd, config.DefaultConfig(), f, ".")
	require.NoError(t, err)

	assert.Equal(t, dir, opts.OutDir)
	assert.Equal(t, synth.ShapeFlat, opts.Shape)
	assert.Equal(t, 2, opts.MaxIterations)
	assert.False(t, opts.ConceptDocs)
	assert.Equal(t, "lib", opts.Subdir)
	assert.Equal(t, []string{".ts", "**/*.go"}, opts.Extensions)
	assert.False(t, opts.Publish)
}

func TestBuildOptionsRejectsUnknownShape(t *testing.T) {
	_, err := buildOptions(generateCmd(), config.DefaultConfig(), generateFlags{shape: "tree"}, ".")
	assert.ErrorContains(t, err, "unknown shape")
}

func TestSetupApplyStoresKey(t *testing.T) {
	s := newSetup()
	s.apiKey = "sk-test"
	cfg := s.apply()

	require.Len(t, cfg.Provider.OpenAI, 1)
	assert.Equal(t, "config", cfg.Provider.OpenAI[0].APIKeySource)
	assert.Equal(t, "sk-test", cfg.Provider.OpenAI[0].APIKey)
}

func TestSetupApplyOllama(t *testing.T) {
	s := newSetup()
	s.cfg.Provider.Default = "ollama"
	cfg := s.apply()
	assert.Equal(t, "llama3.1", cfg.Provider.Model)
	assert.Equal(t, "env", cfg.Provider.OpenAI[0].APIKeySource)
}

func TestRegistryListAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")

	out, err := execute(t, "registry", "list", "--registry", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No projects published.")

	require.NoError(t, artifact.Publish(path, artifact.RegistryEntry{
		ID: "p1", Name: "shop", Path: "/repos/shop/out/project.json", UpdatedAt: time.Now(),
	}))

	out, err = execute(t, "registry", "list", "--registry", path)
	require.NoError(t, err)
	assert.Contains(t, out, "shop")
	assert.Contains(t, out, "/repos/shop/out/project.json")

	out, err = execute(t, "registry", "remove", "p1", "--registry", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed p1")

	_, err = execute(t, "registry", "remove", "p1", "--registry", path)
	assert.ErrorContains(t, err, "not published")
}

func TestHistoryList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := store.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.BeginRun(store.Run{
		ID: "run-1", ProjectID: "p1", ProjectName: "shop", RepoPath: "/repos/shop",
		Shape: "model", StartedAt: time.Now(),
	}))
	require.NoError(t, s.Close())

	out, err := execute(t, "history", "list", "--store", path)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "running")

	out, err = execute(t, "history", "show", "run-1", "--store", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Project:   shop (p1)")
	assert.Contains(t, out, "0 oracle calls")

	_, err = execute(t, "history", "show", "nope", "--store", path)
	assert.ErrorContains(t, err, "not found")
}
