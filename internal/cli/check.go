package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sectmerge/internal/cli/appctx"
	"github.com/lherron/sectmerge/internal/section"
	"github.com/lherron/sectmerge/internal/tomlcheck"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file as TOML",
	Long: `Decodes the configuration file with a TOML parser and reports the first
syntax error. Also warns when the configured section appears more than once,
which apply would collapse.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runCheck),
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(app *appctx.App, cmd *cobra.Command, args []string) error {
	path := app.Config.File
	text, existed, err := app.Store.Load(path)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("%s does not exist", path)
	}

	w := cmd.OutOrStdout()
	if n := section.Occurrences(text, app.Config.Section); n > 1 {
		fmt.Fprintf(w, "warning: [%s] appears %d times in %s; apply will collapse it\n", app.Config.Section, n, path)
	}
	if err := tomlcheck.Validate(text); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(w, "OK: %s is valid TOML\n", path)
	return nil
}
