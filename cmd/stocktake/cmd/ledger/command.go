// Package ledger provides the ledger command, which seeds and inspects the
// catalog and stock ledger.
package ledger

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocktake/internal/cmd/application"
	"github.com/agentstation/stocktake/internal/cmd/output"
	"github.com/agentstation/stocktake/pkg/errors"
	stock "github.com/agentstation/stocktake/pkg/ledger"
)

// NewCommand creates the ledger command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ledger",
		GroupID: "management",
		Short:   "Seed and inspect the stock ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newImportCommand(app))
	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newMovementsCommand(app))
	return cmd
}

func newImportCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Create or update families and items from a YAML seed",
		Args:  cobra.ExactArgs(1),
		Example: `  stocktake ledger import catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := app.Ledger(ctx)
			if err != nil {
				return err
			}
			importer, ok := l.(stock.Importer)
			if !ok {
				return &errors.ConfigError{Component: "ledger", Message: "the configured ledger cannot import seeds"}
			}

			seed, err := stock.LoadSeed(args[0])
			if err != nil {
				return err
			}
			entries, err := seed.Entries()
			if err != nil {
				return err
			}
			if err := importer.Import(ctx, seed.Families, entries); err != nil {
				return err
			}

			app.Logger().Info().
				Str("seed", args[0]).
				Int("families", len(seed.Families)).
				Int("items", len(entries)).
				Msg("Seed imported")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d families and %d items\n", len(seed.Families), len(entries))
			return err
		},
	}
}

func newListCommand(app application.Application) *cobra.Command {
	var family string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List catalog items with their theoretical stock",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, err := app.Ledger(ctx)
			if err != nil {
				return err
			}
			entries, err := l.Entries(ctx)
			if err != nil {
				return err
			}
			if family != "" {
				want := stock.FamilyCode(family).Normalize()
				filtered := entries[:0]
				for _, e := range entries {
					if e.Family.Normalize() == want {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}
			views := output.NewEntryViews(entries)
			return output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.EntriesToTableData(views), views)
		},
	}
	cmd.Flags().StringVar(&family, "family", "", "only list items of this family")
	return cmd
}

func newMovementsCommand(app application.Application) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "movements",
		Short: "List recorded stock movements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, err := app.Ledger(ctx)
			if err != nil {
				return err
			}
			lister, ok := l.(stock.MovementLister)
			if !ok {
				return &errors.ConfigError{Component: "ledger", Message: "the configured ledger does not record movements"}
			}
			moves, err := lister.Movements(ctx, runID)
			if err != nil {
				return err
			}
			if moves == nil {
				moves = []stock.Movement{}
			}
			return output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.MovementsToTableData(moves), moves)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "only list movements of this run")
	return cmd
}
