package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/sectmerge/internal/cli/appctx"
	"github.com/lherron/sectmerge/internal/hook"
	"github.com/lherron/sectmerge/internal/journal"
	"github.com/lherron/sectmerge/internal/render"
	"github.com/lherron/sectmerge/internal/section"
)

var applyCmd = &cobra.Command{
	Use:   "apply [<section> <key>] <value>",
	Short: "Set a directive in the configuration file",
	Long: `Sets key = "value" inside [section] of the configuration file.

The section is created if missing, duplicate occurrences are collapsed into
one, and earlier assignments of the key inside the section are replaced.
Re-running the same apply is a no-op. With a single argument the section
and key come from configuration (default: build / rustc-wrapper).

Examples:
  sectmerge apply /usr/local/bin/sccache
  sectmerge apply build rustc-wrapper /usr/local/bin/sccache
  sectmerge apply -f ./.cargo/config.toml net retry 3 --dry-run
`,
	Args: directiveArgs,
	RunE: appctx.WithApp(appctx.WithJournal(), runApply),
}

var (
	applyDryRun   bool
	applyValidate bool
)

var applyHeaders = []string{"PATH", "SECTION", "KEY", "VALUE", "EXISTED", "CHANGED"}

type applyOutput struct {
	Path    string `json:"path" yaml:"path"`
	Section string `json:"section" yaml:"section"`
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Existed bool   `json:"existed" yaml:"existed"`
	Changed bool   `json:"changed" yaml:"changed"`
	DryRun  bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	EntryID string `json:"entry_id,omitempty" yaml:"entry_id,omitempty"`
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().BoolVarP(&applyDryRun, "dry-run", "n", false, "Print the diff instead of writing")
	applyCmd.Flags().BoolVar(&applyValidate, "validate", false, "Refuse to write a result that is not valid TOML")
}

func runApply(app *appctx.App, cmd *cobra.Command, args []string) error {
	d, err := directiveFromArgs(app, args)
	if err != nil {
		return err
	}
	path := app.Config.File

	if applyDryRun {
		return previewMerge(app, cmd, d, applyValidate)
	}

	ctx, cancel := lockContext(cmd, app)
	defer cancel()

	res, err := app.Store.Update(ctx, path, hook.Transform(d, applyValidate))
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}

	out := applyOutput{
		Path:    path,
		Section: d.Section,
		Key:     d.Key,
		Value:   d.Value,
		Existed: res.Existed,
		Changed: res.Changed,
	}
	if entry := record(app, d, res, journal.SourceApply); entry != nil {
		out.EntryID = entry.ID
	}

	if app.Format == render.FormatTable {
		w := cmd.OutOrStdout()
		switch {
		case !res.Changed:
			fmt.Fprintf(w, "Unchanged: %s already has [%s] %s\n", path, d.Section, d.Line())
		case !res.Existed:
			fmt.Fprintf(w, "Created %s with [%s] %s\n", path, d.Section, d.Line())
		default:
			fmt.Fprintf(w, "Updated %s: [%s] %s\n", path, d.Section, d.Line())
		}
		return nil
	}
	return app.Renderer.Render(out, applyHeaders, [][]string{out.row()})
}

func (o applyOutput) row() []string {
	return []string{o.Path, o.Section, o.Key, o.Value, strconv.FormatBool(o.Existed), strconv.FormatBool(o.Changed)}
}

// previewMerge prints the diff the merge would produce without writing.
func previewMerge(app *appctx.App, cmd *cobra.Command, d section.Directive, validate bool) error {
	path := app.Config.File
	before, existed, err := app.Store.Load(path)
	if err != nil {
		return err
	}
	var existing *string
	if existed {
		existing = &before
	}
	after, err := hook.Transform(d, validate)(existing)
	if err != nil {
		return err
	}

	if app.Format != render.FormatTable {
		out := applyOutput{
			Path:    path,
			Section: d.Section,
			Key:     d.Key,
			Value:   d.Value,
			Existed: existed,
			Changed: !existed || before != after,
			DryRun:  true,
		}
		return app.Renderer.Render(out, applyHeaders, [][]string{out.row()})
	}

	changed, err := app.Renderer.RenderDiff(path, before, after)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(cmd.OutOrStdout(), "No changes: %s already has [%s] %s\n", path, d.Section, d.Line())
	}
	return nil
}
