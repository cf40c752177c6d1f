// Package cli provides the command-line interface for leapscale.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/adapter"
	"github.com/leapstack-labs/leapscale/internal/cli/commands"
	"github.com/leapstack-labs/leapscale/internal/cli/config"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leapscale",
		Short: "leapscale - override propagation for lineage tables",
		Long: `leapscale rescales a table of measurements after some of them were
corrected by hand.

Every row names its ancestors, root first. A row takes the correction
ratio (override / original value) of the nearest overridden row on its
path, checking itself first, and its value is multiplied by that ratio.
Rows with no overridden ancestor keep their value.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", slog.String("path", configFile))
			}
			if cfg.Environment != "" {
				logger.Debug("using environment", slog.String("name", cfg.Environment))
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Override propagation for lineage tables
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./leapscale.yaml, searched upward)")
	pf.StringP("env", "e", "", "Named environment from the config file")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json|csv|yaml)")
	pf.StringP("input", "i", "", "Input table file, - for stdin")
	pf.StringP("format", "f", "", "Input format (auto|csv|json|yaml)")
	pf.IntP("workers", "w", 0, "Parallel workers for propagation")
	pf.String("lineage-separator", "", "Separator for delimited lineage cells (default |)")
	pf.String("id-column", "", "Name of the id column")
	pf.String("value-column", "", "Name of the value column")
	pf.String("override-column", "", "Name of the override column")
	pf.String("lineage-column", "", "Name of the lineage column")
	pf.String("source", "", "Read from a database instead of a file ("+strings.Join(adapter.ListAdapters(), "|")+")")
	pf.String("database", "", "Database path or name for --source")
	pf.String("query", "", "Query selecting the table from --source")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json", "csv", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "csv", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("source", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return adapter.ListAdapters(), cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewPropagateCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewExplainCommand())
	rootCmd.AddCommand(commands.NewGraphCommand())
	rootCmd.AddCommand(commands.NewSampleCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapscale.

To load completions:

Bash:
  $ source <(leapscale completion bash)

Zsh:
  $ leapscale completion zsh > "${fpath[1]}/_leapscale"

Fish:
  $ leapscale completion fish | source

PowerShell:
  PS> leapscale completion powershell | Out-String | Invoke-Expression
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
