package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/sectmerge/internal/cli/appctx"
)

var diffCmd = &cobra.Command{
	Use:   "diff [<section> <key>] <value>",
	Short: "Show the change apply would make",
	Long: `Prints a unified diff between the configuration file and the result of
merging the directive into it. Nothing is written. Equivalent to apply --dry-run.

Examples:
  sectmerge diff /usr/local/bin/sccache
  sectmerge diff build rustc-wrapper /usr/local/bin/sccache
`,
	Args: directiveArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runDiff),
}

var diffValidate bool

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().BoolVar(&diffValidate, "validate", false, "Fail if the result is not valid TOML")
}

func runDiff(app *appctx.App, cmd *cobra.Command, args []string) error {
	d, err := directiveFromArgs(app, args)
	if err != nil {
		return err
	}
	return previewMerge(app, cmd, d, diffValidate)
}
