package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(load func() (*app, error)) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base and history status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			status := a.store.Status()
			updates, err := a.updater.History()
			if err != nil {
				return err
			}
			runs, err := a.aggregator.History()
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"knowledge":       status,
					"updates":         len(updates),
					"assessment_runs": len(runs),
				})
			}

			out := cmd.OutOrStdout()
			version := status.CurrentVersion
			if version == "" {
				version = "Unknown"
			}
			lastUpdated := "never"
			if !status.LastUpdated.IsZero() {
				lastUpdated = status.LastUpdated.UTC().Format(time.RFC3339)
			}

			fmt.Fprintf(out, "Cache directory:  %s\n", a.store.Dir())
			fmt.Fprintf(out, "Tracked version:  %s\n", version)
			fmt.Fprintf(out, "Entries:          %d\n", status.EntriesCount)
			fmt.Fprintf(out, "Last updated:     %s\n", lastUpdated)
			fmt.Fprintf(out, "Docs fresh:       %t\n", status.DocsFresh)
			fmt.Fprintf(out, "Updates logged:   %d\n", len(updates))
			fmt.Fprintf(out, "Assessment runs:  %d\n", len(runs))

			names := make([]string, 0, len(status.Files))
			for name := range status.Files {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintln(out, "Files:")
			for _, name := range names {
				mark := "missing"
				if status.Files[name] {
					mark = "present"
				}
				fmt.Fprintf(out, "  %-28s %s\n", name, mark)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
}
