package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for chocorepack.

To load completions:

PowerShell:
  PS> chocorepack completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> chocorepack completion powershell > chocorepack.ps1
  # and source this file from your PowerShell profile.

Bash:
  $ source <(chocorepack completion bash)

Zsh:
  $ chocorepack completion zsh > "${fpath[1]}/_chocorepack"

Fish:
  $ chocorepack completion fish > ~/.config/fish/completions/chocorepack.fish
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
