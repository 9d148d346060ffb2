package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/sectmerge/internal/cli/appctx"
	"github.com/lherron/sectmerge/internal/render"
	"github.com/lherron/sectmerge/internal/section"
)

var getCmd = &cobra.Command{
	Use:   "get [<section> <key>]",
	Short: "Print the current value of a directive",
	Long: `Prints the value assigned to key inside [section]. When the section occurs
more than once, the last assignment across all occurrences is reported, which
is the value apply would replace.`,
	Args: lookupArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runGet),
}

type getOutput struct {
	Path    string `json:"path" yaml:"path"`
	Section string `json:"section" yaml:"section"`
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Found   bool   `json:"found" yaml:"found"`
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(app *appctx.App, cmd *cobra.Command, args []string) error {
	name, key := lookupFromArgs(app, args)
	path := app.Config.File

	text, existed, err := app.Store.Load(path)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("%s does not exist", path)
	}

	value, found := section.Lookup(text, name, key)
	if app.Format != render.FormatTable {
		out := getOutput{Path: path, Section: name, Key: key, Value: value, Found: found}
		return app.Renderer.Render(out,
			[]string{"PATH", "SECTION", "KEY", "VALUE", "FOUND"},
			[][]string{{path, name, key, value, strconv.FormatBool(found)}})
	}
	if !found {
		return fmt.Errorf("%s is not set in [%s] of %s", key, name, path)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}
