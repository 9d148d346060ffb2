package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/sectmerge/internal/cli/appctx"
	"github.com/lherron/sectmerge/internal/journal"
	"github.com/lherron/sectmerge/internal/section"
	"github.com/lherron/sectmerge/internal/store"
)

// directiveArgs accepts either "<value>" (section and key from config) or
// "<section> <key> <value>".
func directiveArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return fmt.Errorf("%s: expected <value> or <section> <key> <value>, got %d argument(s)", cmd.Name(), len(args))
	}
	return nil
}

// lookupArgs accepts nothing (section and key from config) or "<section> <key>".
func lookupArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("%s: expected no arguments or <section> <key>, got %d argument(s)", cmd.Name(), len(args))
	}
	return nil
}

func directiveFromArgs(app *appctx.App, args []string) (section.Directive, error) {
	d := section.Directive{Section: app.Config.Section, Key: app.Config.Key}
	switch len(args) {
	case 1:
		d.Value = args[0]
	case 3:
		d.Section, d.Key, d.Value = args[0], args[1], args[2]
	}
	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}

func lookupFromArgs(app *appctx.App, args []string) (sectionName, key string) {
	if len(args) == 2 {
		return args[0], args[1]
	}
	return app.Config.Section, app.Config.Key
}

// lockContext bounds lock acquisition by the configured timeout.
func lockContext(cmd *cobra.Command, app *appctx.App) (context.Context, context.CancelFunc) {
	ctx := commandContext(cmd)
	if app.Config.LockTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, app.Config.LockTimeout)
}

// record writes a journal entry when the journal is open. Failures are
// logged and do not fail the command: the file has already been written.
func record(app *appctx.App, d section.Directive, res store.Result, source string) *journal.Entry {
	if app.Journal == nil {
		return nil
	}
	entry, err := app.Journal.Record(journal.Entry{
		Path:    res.Path,
		Section: d.Section,
		Key:     d.Key,
		Value:   d.Value,
		Before:  res.Before,
		After:   res.After,
		Existed: res.Existed,
		Changed: res.Changed,
		Source:  source,
	})
	if err != nil {
		app.Logger.Warn("failed to record journal entry", zap.Error(err))
		return nil
	}
	return &entry
}
