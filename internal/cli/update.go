package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateCmd(load func() (*app, error)) *cobra.Command {
	var comprehensive bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh the knowledge base now",
		Long: `Fetch the latest release from the package registry and its change log,
rebuild the knowledge base and append to the update history. When either
source is unreachable the fixed baseline release is stored instead.`,
		Example: `  pydverify update
  pydverify update --comprehensive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			if comprehensive {
				res, err := a.updater.ComprehensiveUpdate(cmd.Context())
				if err != nil {
					return fmt.Errorf("%w: %v", ErrConfig, err)
				}
				return writeJSON(cmd.OutOrStdout(), res)
			}

			res, err := a.updater.UpdateKnowledgeBase(cmd.Context())
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConfig, err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().BoolVar(&comprehensive, "comprehensive", false, "also force a documentation refresh and compare with the stored version")

	return cmd
}
