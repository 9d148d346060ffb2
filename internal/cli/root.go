package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sectmerge",
	Short: "Idempotently set one directive in a sectioned config file",
	Long: `sectmerge rewrites a line-oriented, section-structured configuration file
(such as ~/.cargo/config.toml) so that one named section holds an up-to-date
key = value directive. Duplicate occurrences of the section are collapsed,
stale assignments of the key are replaced, and unrelated content is kept.

Running the same merge twice leaves the file unchanged. Every write is atomic
and recorded in a local journal so it can be listed and restored.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringP("file", "f", "", "Configuration file to edit (overrides SECTMERGE_FILE)")
	rootCmd.PersistentFlags().String("section", "", "Section name (overrides SECTMERGE_SECTION)")
	rootCmd.PersistentFlags().String("key", "", "Directive key (overrides SECTMERGE_KEY)")
	rootCmd.PersistentFlags().String("journal", "", "Path to journal database (overrides SECTMERGE_JOURNAL)")
	rootCmd.PersistentFlags().Bool("no-journal", false, "Do not read or write the journal")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, yaml, tsv")
	rootCmd.PersistentFlags().Bool("porcelain", false, "Machine-readable output: tab-separated tables, compact JSON")
}

// commandContext returns the command's context, falling back to Background
// when the command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
