// Package completion provides shell completion generation.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Shells lists the supported completion targets.
var Shells = []string{"bash", "zsh", "fish", "powershell"}

// NewCommand creates the completion command with one subcommand per shell.
// It replaces Cobra's default completion command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for stocktake.

Examples:
  # Load bash completions in the current session
  source <(stocktake completion bash)

  # Install zsh completions
  stocktake completion zsh > "${fpath[1]}/_stocktake"

  # Load fish completions
  stocktake completion fish | source`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	for _, shell := range Shells {
		cmd.AddCommand(newShellCommand(shell))
	}
	return cmd
}

func newShellCommand(shell string) *cobra.Command {
	return &cobra.Command{
		Use:                   shell,
		Short:                 fmt.Sprintf("Generate %s completion script", shell),
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Generate(cmd.Root(), shell, cmd)
		},
	}
}

// Generate writes the completion script for shell to the command output.
func Generate(root *cobra.Command, shell string, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(out, true)
	case "zsh":
		return root.GenZshCompletion(out)
	case "fish":
		return root.GenFishCompletion(out, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(out)
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
}
