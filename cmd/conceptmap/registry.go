// cmd/conceptmap/registry.go
package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/julianshen/conceptmap/internal/artifact"
	"github.com/julianshen/conceptmap/internal/config"
)

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage published projects",
		Long:  "List, inspect and remove projects published to the registry read by the viewer.",
	}

	cmd.PersistentFlags().String("registry", "", "registry file (default from config)")

	cmd.AddCommand(registryListCmd())
	cmd.AddCommand(registryShowCmd())
	cmd.AddCommand(registryRemoveCmd())

	return cmd
}

// resolveRegistryPath returns the registry path from the flag or the config.
func resolveRegistryPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("registry")
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return "", err
		}
		path = cfg.Output.Registry
	}
	if path == "" {
		return "", fmt.Errorf("no registry configured")
	}
	return config.ExpandHome(path), nil
}

func registryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List published projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveRegistryPath(cmd)
			if err != nil {
				return err
			}
			reg, err := artifact.LoadRegistry(path)
			if err != nil {
				return err
			}
			if len(reg.Projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects published.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tUPDATED\tPATH")
			for _, e := range reg.Sorted() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Name, e.UpdatedAt.Local().Format(time.DateTime), e.Path)
			}
			return w.Flush()
		},
	}
}

func registryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Summarize a published project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveRegistryPath(cmd)
			if err != nil {
				return err
			}
			reg, err := artifact.LoadRegistry(path)
			if err != nil {
				return err
			}
			var entry *artifact.RegistryEntry
			for i := range reg.Projects {
				if reg.Projects[i].ID == args[0] {
					entry = &reg.Projects[i]
					break
				}
			}
			if entry == nil {
				return fmt.Errorf("project %q is not published", args[0])
			}
			if filepath.Base(entry.Path) == artifact.LegacyFile {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: flat concept documents at %s\n", entry.Name, entry.Path)
				return nil
			}

			project, err := artifact.ReadProject(entry.Path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", project.Name, project.ID)
			if project.Summary != "" {
				fmt.Fprintf(out, "%s\n", project.Summary)
			}
			fmt.Fprintf(out, "Generated: %s\n\n", project.GeneratedAt.Local().Format(time.DateTime))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tCONCEPTS\tRELATIONSHIPS\tRULES\tVIEWS\tSTORIES")
			for _, m := range project.Models {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", m.Title, len(m.Concepts), len(m.Relationships),
					len(m.Rules), len(m.Views), len(m.StoryViews))
			}
			return w.Flush()
		},
	}
}

func registryRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a project from the registry",
		Long:  "Remove a project entry from the registry. The artifact on disk is left in place.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveRegistryPath(cmd)
			if err != nil {
				return err
			}
			removed, err := artifact.Unpublish(path, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("project %q is not published", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], path)
			return nil
		},
	}
}
