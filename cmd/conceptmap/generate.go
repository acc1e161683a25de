// cmd/conceptmap/generate.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/julianshen/conceptmap/internal/config"
	"github.com/julianshen/conceptmap/internal/oracle"
	"github.com/julianshen/conceptmap/internal/output"
	"github.com/julianshen/conceptmap/internal/provider"
	"github.com/julianshen/conceptmap/internal/provider/ollama"
	"github.com/julianshen/conceptmap/internal/store"
	"github.com/julianshen/conceptmap/internal/synth"
)

type generateFlags struct {
	out           string
	clean         bool
	verbose       bool
	maxIterations int
	name          string
	noPublish     bool
	shape         string
	rationalize   bool
	docs          bool
	subdir        string
	extensions    []string
	registry      string
	yes           bool
	report        string
}

func generateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate [repo]",
		Short: "Generate the concept model of a repository",
		Long: `Index a repository, extract its exported declarations and ask the
configured LLM to discover, enrich and curate its domain concepts.

The result is written to project.json (or concepts.json with --shape flat)
in the output directory and published to the project registry.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := "."
			if len(args) > 0 {
				repo = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts, err := buildOptions(cmd, cfg, f, repo)
			if err != nil {
				return err
			}

			if opts.Clean && !f.yes && output.IsTerminal(os.Stdin) {
				ok, err := confirmClean(opts.OutDir)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("aborted")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runGenerate(ctx, cmd, cfg, opts, f)
		},
	}

	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&f.clean, "clean", false, "remove previous output before writing")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log per-concept progress")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "discovery iteration cap for the flat shape")
	cmd.Flags().StringVar(&f.name, "name", "", "project name (default: repository directory name)")
	cmd.Flags().BoolVar(&f.noPublish, "no-publish", false, "do not update the project registry")
	cmd.Flags().StringVar(&f.shape, "shape", string(synth.ShapeModel), "output shape: model, flat")
	cmd.Flags().BoolVar(&f.rationalize, "rationalize", false, "regroup concepts into bounded contexts")
	cmd.Flags().BoolVar(&f.docs, "docs", true, "write a Markdown document per concept")
	cmd.Flags().StringVar(&f.subdir, "subdir", "", "directory to index inside the repository (default from config)")
	cmd.Flags().StringSliceVar(&f.extensions, "ext", nil, "file extensions or glob patterns to index")
	cmd.Flags().StringVar(&f.registry, "registry", "", "registry file (default from config)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "do not ask before cleaning")
	cmd.Flags().StringVar(&f.report, "report", "", "run report format: markdown, json (default from config)")

	return cmd
}

// buildOptions merges the configuration with the flags that were set.
func buildOptions(cmd *cobra.Command, cfg *config.Config, f generateFlags, repo string) (synth.Options, error) {
	changed := cmd.Flags().Changed
	pc := cfg.Pipeline

	shape, err := synth.ParseShape(f.shape)
	if err != nil {
		return synth.Options{}, err
	}

	opts := synth.Options{
		Root:            repo,
		Name:            f.name,
		OutDir:          cfg.Output.Dir,
		Clean:           f.clean,
		Shape:           shape,
		MaxIterations:   pc.MaxIterations,
		Rationalize:     f.rationalize,
		ConceptDocs:     cfg.Output.ConceptDocs,
		Subdir:          pc.Subdir,
		Extensions:      pc.Extensions,
		Ignore:          pc.Ignore,
		MaxDeclarations: pc.MaxDeclarations,
		Snippets: synth.SnippetLimits{
			Files: pc.SnippetFiles,
			Lines: pc.SnippetLines,
			Bytes: pc.SnippetBytes,
		},
		ParseWorkers: pc.ParseWorkers,
		Publish:      !f.noPublish,
		RegistryPath: cfg.Output.Registry,
		RunID:        uuid.NewString(),
	}
	if changed("out") {
		opts.OutDir = f.out
	}
	if changed("max-iterations") {
		opts.MaxIterations = f.maxIterations
	}
	if changed("docs") {
		opts.ConceptDocs = f.docs
	}
	if changed("subdir") {
		opts.Subdir = f.subdir
	}
	if changed("ext") {
		opts.Extensions = f.extensions
	}
	if changed("registry") {
		opts.RegistryPath = f.registry
	}

	if opts.OutDir == "" {
		return synth.Options{}, errors.New("no output directory configured")
	}
	if opts.OutDir, err = filepath.Abs(config.ExpandHome(opts.OutDir)); err != nil {
		return synth.Options{}, fmt.Errorf("resolving output directory: %w", err)
	}
	if opts.RegistryPath != "" {
		opts.RegistryPath = config.ExpandHome(opts.RegistryPath)
	}
	return opts, nil
}

func confirmClean(dir string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Remove previous output in %s?", dir)).
		Affirmative("Clean").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirm clean: %w", err)
	}
	return ok, nil
}

func runGenerate(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts synth.Options, f generateFlags) error {
	logger := newLogger(cmd.ErrOrStderr(), f.verbose)

	if cfg.Provider.Default == "ollama" {
		if err := ollama.NewClient(cfg.Provider.Ollama.BaseURL).CheckModel(ctx, cfg.Provider.Model); err != nil {
			return fmt.Errorf("ollama preflight: %w", err)
		}
	}

	p, err := provider.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	clientOpts := []oracle.Option{
		oracle.WithMaxTokens(cfg.Provider.MaxTokens),
		oracle.WithTemperature(cfg.Provider.Temperature),
		oracle.WithRequestsPerMinute(cfg.Provider.RequestsPerMinute),
		oracle.WithLogger(logger),
	}

	pipeline := &synth.Pipeline{Logger: logger}

	if cfg.Store.Enabled && cfg.Store.Path != "" {
		s, err := openStore(cfg.Store.Path)
		if err != nil {
			logger.Warn("run history disabled", "error", err)
		} else {
			defer s.Close()
			clientOpts = append(clientOpts, oracle.WithRecorder(s, opts.RunID))
			pipeline.History = s
		}
	}
	pipeline.Oracle = oracle.NewClient(p, cfg.Provider.Model, clientOpts...)

	report, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	format := cfg.Output.Report
	if f.report != "" {
		format = f.report
	}
	styled := output.IsTerminal(os.Stdout)
	return output.Write(cmd.OutOrStdout(), report, format, styled, output.TerminalWidth(os.Stdout))
}

func openStore(path string) (*store.Store, error) {
	path = config.ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}
