// Package recovery provides the recover command, which finishes runs
// interrupted after their ledger transaction.
package recovery

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocktake/internal/cmd/application"
	"github.com/agentstation/stocktake/internal/cmd/output"
)

// NewCommand creates the recover command using app context.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "recover",
		GroupID: "management",
		Short:   "Finish runs interrupted after the ledger commit",
		Long: `Recover reads the run journal of the inventory root.

Runs whose ledger transaction committed have their staged directory
promoted as the run would have done. Runs that never committed have
their staged directory removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := app.Engine(cmd.Context())
			if err != nil {
				return err
			}
			recoveries, err := engine.Recover(cmd.Context())
			if err != nil {
				return err
			}
			if len(recoveries) == 0 && app.OutputFormat() != "json" && app.OutputFormat() != "yaml" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Nothing to recover")
				return err
			}
			views := output.NewRecoveryViews(recoveries)
			return output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.RecoveriesToTableData(views), views)
		},
	}
}
