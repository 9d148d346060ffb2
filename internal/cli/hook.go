package cli

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/lherron/sectmerge/internal/cli/appctx"
	"github.com/lherron/sectmerge/internal/hook"
	"github.com/lherron/sectmerge/internal/installer"
)

var hookCmd = &cobra.Command{
	Use:   "hook --program <name>",
	Short: "Point the configured directive at an executable (best effort)",
	Long: `Resolves --program to an absolute executable path (looking in --dir first,
then $PATH) and merges it as the value of the configured section and key.

Intended to be called from build tooling: every failure is reported as a
warning and the command still exits 0 unless --strict is given. No files other
than the configuration file (and its lock and the journal) are touched.

Examples:
  sectmerge hook --program sccache
  sectmerge hook --program ./bin/cachewrap --dir /opt/tools --strict
`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.WithJournal(), runHook),
}

var (
	hookProgram  string
	hookDir      string
	hookValidate bool
	hookStrict   bool
)

func init() {
	rootCmd.AddCommand(hookCmd)

	hookCmd.Flags().StringVar(&hookProgram, "program", "", "Executable to point the directive at (required)")
	hookCmd.Flags().StringVar(&hookDir, "dir", "", "Directory searched before $PATH")
	hookCmd.Flags().BoolVar(&hookValidate, "validate", true, "Refuse to write a result that is not valid TOML")
	hookCmd.Flags().BoolVar(&hookStrict, "strict", false, "Exit non-zero when any step fails")
	_ = hookCmd.MarkFlagRequired("program")
}

func runHook(app *appctx.App, cmd *cobra.Command, args []string) error {
	h := &hook.Hook{
		Installer: installer.Resolver{Program: hookProgram},
		Store:     app.Store,
		Logger:    app.Logger,
		Path:      app.Config.File,
		Dir:       hookDir,
		Section:   app.Config.Section,
		Key:       app.Config.Key,
		Validate:  hookValidate,
	}
	if app.Journal != nil {
		h.Journal = app.Journal
	}

	ctx, cancel := lockContext(cmd, app)
	defer cancel()

	rep := h.Run(ctx)
	if rep.OK() {
		status := "unchanged"
		if rep.Result.Changed {
			status = "updated"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: [%s] %s\n", status, h.Path, rep.Directive.Section, rep.Directive.Line())
		return nil
	}

	if hookStrict {
		return rep.Err
	}
	for _, err := range hookErrors(rep.Err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return nil
}

func hookErrors(err error) []error {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.Errors
	}
	return []error{err}
}
