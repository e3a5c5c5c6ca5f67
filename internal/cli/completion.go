package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/pipeline"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for tractstory.

Bash:
  $ source <(tractstory completion bash)

Zsh:
  $ tractstory completion zsh > "${fpath[1]}/_tractstory"

Fish:
  $ tractstory completion fish | source

PowerShell:
  PS> tractstory completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(c.Out, true)
			case "zsh":
				return root.GenZshCompletion(c.Out)
			case "fish":
				return root.GenFishCompletion(c.Out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(c.Out)
			}
			return nil
		},
	}
}

// registerListCompletions completes the comma-separated --steps and
// --format flags of cmd.
func registerListCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("steps", completeList(stepNames()))
	_ = cmd.RegisterFlagCompletionFunc("format", completeList(formatNames()))
}

// completeList offers the remaining values after the last comma.
func completeList(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		prefix := ""
		if i := strings.LastIndex(toComplete, ","); i >= 0 {
			prefix = toComplete[:i+1]
		}
		used := map[string]bool{}
		for _, v := range strings.Split(prefix, ",") {
			used[v] = true
		}
		var out []string
		for _, v := range values {
			if !used[v] {
				out = append(out, prefix+v)
			}
		}
		return out, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
	}
}

func stepNames() []string {
	steps := chart.Steps()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.String()
	}
	return names
}

func formatNames() []string {
	return []string{pipeline.FormatSVG, pipeline.FormatJSON, pipeline.FormatPNG, pipeline.FormatPDF}
}
