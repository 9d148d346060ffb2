// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction, and journal opening
// to reduce boilerplate across commands.
package appctx

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/sectmerge/internal/config"
	"github.com/lherron/sectmerge/internal/journal"
	"github.com/lherron/sectmerge/internal/logging"
	"github.com/lherron/sectmerge/internal/render"
	"github.com/lherron/sectmerge/internal/store"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration, with flag overrides applied
	Config *config.Config

	// Logger writes structured logs to stderr
	Logger *zap.Logger

	// Store reads and writes the target configuration file
	Store *store.Store

	// Journal is the merge history (nil when not requested or unavailable)
	Journal *journal.Journal

	// Renderer writes command output to the command's stdout
	Renderer *render.Renderer

	// Format is the selected output format
	Format render.Format
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Journal != nil {
		a.Journal.Close()
		a.Journal = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// JournalMode controls whether Bootstrap opens the journal.
type JournalMode int

const (
	// JournalNone never opens the journal.
	JournalNone JournalMode = iota
	// JournalOptional opens the journal and logs a warning if that fails.
	JournalOptional
	// JournalRequired fails the command when the journal cannot be opened.
	JournalRequired
)

// Options configures the bootstrap behavior.
type Options struct {
	Journal JournalMode
}

// DefaultOptions returns default options (no journal).
func DefaultOptions() Options {
	return Options{Journal: JournalNone}
}

// WithJournal returns options that open the journal if possible.
func WithJournal() Options {
	return Options{Journal: JournalOptional}
}

// RequireJournal returns options that fail without a journal.
func RequireJournal() Options {
	return Options{Journal: JournalRequired}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// Resources are released automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg
	applyFlags(cmd, cfg)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	format, err := render.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}
	app.Format = format
	app.Renderer = render.NewRenderer(cmd.OutOrStdout(), render.Options{
		Format:    format,
		Porcelain: boolFlag(cmd, "porcelain"),
	})

	app.Store = store.New(logger)

	if opts.Journal != JournalNone && !noJournal(cmd) {
		j, err := journal.Open(cfg.JournalPath)
		switch {
		case err == nil:
			app.Journal = j
		case opts.Journal == JournalRequired:
			app.Close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		default:
			logger.Warn("journal unavailable; history will not be recorded",
				zap.String("journal", cfg.JournalPath), zap.Error(err))
		}
	}

	return app, nil
}

// applyFlags overrides config values with persistent flags that were set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := []struct {
		flag  string
		name  string
		field *string
	}{
		{"file", "file", &cfg.File},
		{"journal", "journal_path", &cfg.JournalPath},
		{"log-level", "log_level", &cfg.LogLevel},
		{"log-format", "log_format", &cfg.LogFormat},
		{"output", "output", &cfg.Output},
		{"section", "section", &cfg.Section},
		{"key", "key", &cfg.Key},
	}
	for _, o := range overrides {
		f := cmd.Flag(o.flag)
		if f == nil || !f.Changed {
			continue
		}
		cfg.SetFlag(o.name, o.field, f.Value.String(), o.flag)
	}
}

func noJournal(cmd *cobra.Command) bool {
	return boolFlag(cmd, "no-journal")
}

func boolFlag(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Value.String() == "true"
}
