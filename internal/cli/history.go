package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/sectmerge/internal/cli/appctx"
	"github.com/lherron/sectmerge/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded merges for the configuration file",
	Long: `Lists journal entries for the configuration file, newest first. Use --all to
include every file the journal knows about.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.RequireJournal(), runHistory),
}

var (
	historyLimit int
	historyAll   bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "Show entries for every file")
}

func runHistory(app *appctx.App, cmd *cobra.Command, args []string) error {
	path := app.Config.File
	if historyAll {
		path = ""
	}

	entries, err := app.Journal.List(path, historyLimit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	headers := []string{"ID", "APPLIED", "SOURCE", "CHANGED", "SECTION", "KEY", "VALUE"}
	if historyAll {
		headers = append(headers, "PATH")
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		row := []string{
			e.ShortID(),
			e.AppliedAt.Local().Format(time.DateTime),
			e.Source,
			strconv.FormatBool(e.Changed),
			e.Section,
			e.Key,
			e.Value,
		}
		if historyAll {
			row = append(row, e.Path)
		}
		rows = append(rows, row)
	}

	return app.Renderer.Render(entries, headers, rows)
}
