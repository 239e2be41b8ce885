// Package run provides the run command, which reconciles a scan file
// against the ledger.
package run

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/stocktake"
	"github.com/agentstation/stocktake/internal/cmd/application"
	"github.com/agentstation/stocktake/internal/cmd/output"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/period"
)

// Flags holds the flags of the run command.
type Flags struct {
	Yes  bool
	No   bool
	Date string
}

// NewCommand creates the run command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "run <scan-file>",
		GroupID: "core",
		Short:   "Reconcile a scan file with the stock ledger",
		Args:    cobra.ExactArgs(1),
		Long: `Run reconciles a scanner export with the stock ledger.

The command will:
• Parse the scan file, one item code per line
• Validate every code against the catalog and its family
• Stage the raw, sorted and per-family listings
• Post the inbound and outbound movements in one transaction
• Promote the staged directory to inventory_<date>

Every problem is reported with its code and asks whether to continue.
Use --yes or --no to answer all prompts without a terminal.`,
		Example: `  stocktake run scan.txt                    # Interactive run
  stocktake run scan.txt --yes              # Accept every prompt
  stocktake run scan.txt --date 2026-06-30  # Override the reconciliation date
  stocktake run scan.txt -o json            # Machine readable summary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			engine, err := app.Engine(cmd.Context(), opts...)
			if err != nil {
				return err
			}

			run, runErr := engine.Reconcile(cmd.Context(), args[0])
			summary := output.NewRunSummary(run)
			if err := output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.RunToTableData(summary), summary); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false, "answer yes to every prompt")
	cmd.Flags().BoolVar(&flags.No, "no", false, "answer no to every prompt")
	cmd.Flags().StringVar(&flags.Date, "date", "", "reconciliation date (YYYY-MM-DD), derived from the reference dates by default")
	cmd.MarkFlagsMutuallyExclusive("yes", "no")

	return cmd
}

func (f *Flags) options() ([]stocktake.Option, error) {
	var opts []stocktake.Option
	switch {
	case f.Yes:
		opts = append(opts, stocktake.WithDecider(decide.Always(true)))
	case f.No:
		opts = append(opts, stocktake.WithDecider(decide.Always(false)))
	}
	if f.Date != "" {
		date, err := period.Parse(f.Date)
		if err != nil {
			return nil, err
		}
		opts = append(opts, stocktake.WithDate(date))
	}
	return opts, nil
}
