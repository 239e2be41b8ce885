package app

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocktake/cmd/stocktake/cmd/completion"
	"github.com/agentstation/stocktake/cmd/stocktake/cmd/ledger"
	"github.com/agentstation/stocktake/cmd/stocktake/cmd/period"
	"github.com/agentstation/stocktake/cmd/stocktake/cmd/recovery"
	"github.com/agentstation/stocktake/cmd/stocktake/cmd/run"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(run.NewCommand(a))
	rootCmd.AddCommand(period.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(ledger.NewCommand(a))
	rootCmd.AddCommand(recovery.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(completion.NewCommand())
	rootCmd.AddCommand(a.NewVersionCommand())
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("stocktake %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
				cmd.Printf("  go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
		},
	}
}
