// Package period provides the period command, which shows the
// reconciliation date a run started now would use.
package period

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/stocktake/internal/cmd/application"
	"github.com/agentstation/stocktake/internal/cmd/output"
	"github.com/agentstation/stocktake/pkg/period"
	"github.com/agentstation/stocktake/pkg/staging"
)

// View is what the period command prints.
type View struct {
	At         string   `json:"at" yaml:"at"`
	Date       string   `json:"date" yaml:"date"`
	Directory  string   `json:"directory" yaml:"directory"`
	References []string `json:"references" yaml:"references"`
}

// NewCommand creates the period command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Show the reconciliation date and inventory directory",
		Long: `Period shows the reconciliation date derived from the configured
reference dates: the latest one on or before today, or on or before --at.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := app.Now()
			if at != "" {
				t, err := period.Parse(at)
				if err != nil {
					return err
				}
				now = t
			}
			refs := app.References()
			date := period.Format(period.Date(now, refs))

			view := View{
				At:        period.Format(now),
				Date:      date,
				Directory: staging.CanonicalName(date),
			}
			for _, r := range refs {
				view.References = append(view.References, r.String())
			}
			return output.WriteAny(cmd.OutOrStdout(), app.OutputFormat(), view)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "compute the date as of this day (YYYY-MM-DD)")
	return cmd
}
