package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/sectmerge/internal/cli/appctx"
	"github.com/lherron/sectmerge/internal/journal"
	"github.com/lherron/sectmerge/internal/section"
	"github.com/lherron/sectmerge/internal/store"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <entry-id>",
	Short: "Revert the configuration file to its state before a merge",
	Long: `Writes back the content the file had before the given journal entry was
applied. If the file did not exist then, it is removed. The file must still
match what the entry wrote unless --force is given.

Examples:
  sectmerge history
  sectmerge restore 3f2a9c1d
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.RequireJournal(), runRestore),
}

var restoreForce bool

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "Restore even if the file changed since the entry")
}

func runRestore(app *appctx.App, cmd *cobra.Command, args []string) error {
	entry, err := app.Journal.Get(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := lockContext(cmd, app)
	defer cancel()

	res := store.Result{Path: entry.Path, After: entry.Before, Changed: true}
	err = app.Store.WithLock(ctx, entry.Path, func() error {
		current, exists, err := app.Store.Load(entry.Path)
		if err != nil {
			return err
		}
		res.Before, res.Existed = current, exists

		if !restoreForce && (!exists || current != entry.After) {
			return fmt.Errorf("%s was modified after entry %s; use --force to restore anyway", entry.Path, entry.ShortID())
		}
		if entry.Existed {
			return app.Store.Save(entry.Path, entry.Before)
		}
		return app.Store.Remove(entry.Path)
	})
	if err != nil {
		return err
	}

	d := section.Directive{Section: entry.Section, Key: entry.Key, Value: entry.Value}
	record(app, d, res, journal.SourceRestore)

	if entry.Existed {
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to its state before %s\n", entry.Path, entry.ShortID())
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (it did not exist before %s)\n", entry.Path, entry.ShortID())
	}
	return nil
}
