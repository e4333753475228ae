// Package cli implements the pydverify command line: knowledge updates,
// scheduled maintenance, ad-hoc verification, batch assessment, the HTTP
// server and a status view.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/pydverify/backend/internal/assessment"
)

const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pydverify",
		Short: "Verify and correct drafted Pydantic answers",
		Long: `pydverify checks drafted answers about Pydantic against a catalog of known
misconceptions, legacy v1 syntax and a locally cached knowledge base, corrects
what it can and reports on batches of answers.

The knowledge base is refreshed from the package registry and the project
change log, either on demand (update) or on a schedule (schedule).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: search ., ./config, /etc/pydverify)")

	load := func() (*app, error) {
		return newApp(configPath)
	}

	rootCmd.AddCommand(newUpdateCmd(load))
	rootCmd.AddCommand(newScheduleCmd(load))
	rootCmd.AddCommand(newVerifyCmd(load))
	rootCmd.AddCommand(newAssessCmd(load))
	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newStatusCmd(load))

	return rootCmd
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfig), errors.Is(err, assessment.ErrStorageUnwritable):
		return ExitConfig
	default:
		return ExitFailed
	}
}
