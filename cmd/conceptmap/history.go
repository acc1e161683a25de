// cmd/conceptmap/history.go
package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/julianshen/conceptmap/internal/config"
	"github.com/julianshen/conceptmap/internal/store"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past generation runs",
		Long:  "List recorded runs and show the oracle calls made during a run.",
	}

	cmd.PersistentFlags().String("store", "", "path to history database (default from config)")

	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyShowCmd())

	return cmd
}

// openHistory opens the store from the --store flag or the configured path.
func openHistory(cmd *cobra.Command) (*store.Store, error) {
	path, _ := cmd.Flags().GetString("store")
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no history database configured")
	}
	return store.NewStore(config.ExpandHome(path))
}

func historyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := s.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tPROJECT\tSHAPE\tSTATUS\tSTARTED\tCONCEPTS\tCALLS\tSOFT FAILURES")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.ProjectName, r.Shape, r.Status, r.StartedAt.Local().Format(time.DateTime),
					r.Concepts, r.OracleCalls, r.SoftFailures)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of runs (0 for all)")
	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its oracle calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return showRun(cmd, s, args[0])
		},
	}
}

func showRun(cmd *cobra.Command, s *store.Store, id string) error {
	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %q not found", id)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", run.ID)
	fmt.Fprintf(out, "Project:   %s (%s)\n", run.ProjectName, run.ProjectID)
	fmt.Fprintf(out, "Repo:      %s\n", run.RepoPath)
	fmt.Fprintf(out, "Status:    %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", run.Error)
	}
	if run.ArtifactPath != "" {
		fmt.Fprintf(out, "Artifact:  %s\n", run.ArtifactPath)
	}

	failures, err := s.StageFailures(id)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		stages := make([]string, 0, len(failures))
		for stage := range failures {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		fmt.Fprintln(out, "Failed calls:")
		for _, stage := range stages {
			fmt.Fprintf(out, "  %s: %d\n", stage, failures[stage])
		}
	}

	calls, err := s.CallsForRun(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d oracle calls\n", len(calls))
	if len(calls) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tUNIT\tDURATION\tTOKENS IN\tTOKENS OUT\tERROR")
	for _, c := range calls {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			c.Stage, c.Unit, c.Duration.Round(time.Millisecond), c.InputTokens, c.OutputTokens, c.Err)
	}
	return w.Flush()
}
