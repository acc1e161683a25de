// cmd/conceptmap/init.go
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/julianshen/conceptmap/internal/config"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			s := newSetup()
			if err := s.form.Run(); err != nil {
				return fmt.Errorf("setup: %w", err)
			}
			if err := config.Save(path, s.apply()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

// setup is the first-run wizard. The API key is staged outside the config
// and copied into the OpenAI-compatible entry by apply.
type setup struct {
	form   *huh.Form
	cfg    *config.Config
	apiKey string
}

func newSetup() *setup {
	cfg := config.DefaultConfig()
	s := &setup{cfg: cfg}

	providerGroup := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Choose your LLM provider").
			Options(
				huh.NewOption("OpenAI Compatible", "openai"),
				huh.NewOption("Ollama (Local)", "ollama"),
			).
			Value(&cfg.Provider.Default),
	).Title("Welcome to conceptmap")

	keyGroup := huh.NewGroup(
		huh.NewInput().
			Title("API Key").
			Description("Leave empty to read OPENAI_API_KEY from the environment").
			Placeholder("sk-...").
			Value(&s.apiKey).
			EchoMode(huh.EchoModePassword),
	).Title("Authentication").
		WithHideFunc(func() bool { return cfg.Provider.Default != "openai" })

	modelGroup := huh.NewGroup(
		huh.NewInput().
			Title("Model").
			Placeholder(cfg.Provider.Model).
			Value(&cfg.Provider.Model),
	).Title("Model")

	outputGroup := huh.NewGroup(
		huh.NewInput().
			Title("Output directory").
			Value(&cfg.Output.Dir),
		huh.NewInput().
			Title("Project registry").
			Value(&cfg.Output.Registry),
		huh.NewConfirm().
			Title("Write a Markdown document per concept?").
			Value(&cfg.Output.ConceptDocs),
	).Title("Output")

	s.form = huh.NewForm(providerGroup, keyGroup, modelGroup, outputGroup)
	return s
}

// apply returns the config populated by the wizard.
func (s *setup) apply() *config.Config {
	if s.cfg.Provider.Default == "openai" && s.apiKey != "" {
		for i := range s.cfg.Provider.OpenAI {
			if s.cfg.Provider.OpenAI[i].Name == "openai" {
				s.cfg.Provider.OpenAI[i].APIKeySource = "config"
				s.cfg.Provider.OpenAI[i].APIKey = s.apiKey
			}
		}
	}
	if s.cfg.Provider.Default == "ollama" && s.cfg.Provider.Model == config.DefaultConfig().Provider.Model {
		s.cfg.Provider.Model = "llama3.1"
	}
	return s.cfg
}
