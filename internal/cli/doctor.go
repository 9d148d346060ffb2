package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/sectmerge/internal/cli/appctx"
	"github.com/lherron/sectmerge/internal/db"
	"github.com/lherron/sectmerge/internal/render"
	"github.com/lherron/sectmerge/internal/section"
	"github.com/lherron/sectmerge/internal/tomlcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Show effective configuration and check the target file",
	Long: `Displays the effective configuration values and their sources, then checks
that the target file is readable, valid TOML, and holds the configured
directive exactly once.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runDoctor),
}

type configValue struct {
	Value  string `json:"value" yaml:"value"`
	Source string `json:"source" yaml:"source"`
}

type checkResult struct {
	Name    string `json:"name" yaml:"name"`
	Status  string `json:"status" yaml:"status"` // "ok", "warning", "error"
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

type doctorReport struct {
	Version       string                 `json:"version" yaml:"version"`
	Config        map[string]configValue `json:"config" yaml:"config"`
	Checks        []checkResult          `json:"checks" yaml:"checks"`
	Warnings      int                    `json:"warnings" yaml:"warnings"`
	Errors        int                    `json:"errors" yaml:"errors"`
	OverallStatus string                 `json:"overall_status" yaml:"overall_status"`
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(app *appctx.App, cmd *cobra.Command, args []string) error {
	cfg := app.Config
	report := &doctorReport{
		Version: Version,
		Config: map[string]configValue{
			"file":         {cfg.File, cfg.Source("file")},
			"section":      {cfg.Section, cfg.Source("section")},
			"key":          {cfg.Key, cfg.Source("key")},
			"journal_path": {cfg.JournalPath, cfg.Source("journal_path")},
			"log_level":    {cfg.LogLevel, cfg.Source("log_level")},
			"lock_timeout": {cfg.LockTimeout.String(), cfg.Source("lock_timeout")},
		},
		Checks:        []checkResult{},
		OverallStatus: "ok",
	}

	report.Checks = append(report.Checks, checkTargetFile(app)...)
	report.Checks = append(report.Checks, checkJournal(cfg.JournalPath))

	for _, c := range report.Checks {
		switch c.Status {
		case "warning":
			report.Warnings++
		case "error":
			report.Errors++
		}
	}
	if report.Errors > 0 {
		report.OverallStatus = "error"
	} else if report.Warnings > 0 {
		report.OverallStatus = "warning"
	}

	if app.Format == render.FormatJSON || app.Format == render.FormatYAML {
		return app.Renderer.Render(report, nil, nil)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Configuration Report")
	fmt.Fprintln(w, "====================")
	fmt.Fprintln(w)
	for _, name := range []string{"file", "section", "key", "journal_path", "log_level", "lock_timeout"} {
		v := report.Config[name]
		fmt.Fprintf(w, "  %s: %s\n", name, v.Value)
		fmt.Fprintf(w, "    Source: %s\n", v.Source)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Checks:")
	for _, c := range report.Checks {
		mark := "✓"
		switch c.Status {
		case "warning":
			mark = "⚠"
		case "error":
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %s: %s\n", mark, c.Name, c.Message)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status: %s (%d warning(s), %d error(s))\n", report.OverallStatus, report.Warnings, report.Errors)
	return nil
}

// checkTargetFile inspects the configuration file and the configured directive.
func checkTargetFile(app *appctx.App) []checkResult {
	cfg := app.Config
	text, exists, err := app.Store.Load(cfg.File)
	if err != nil {
		return []checkResult{{Name: "file_readable", Status: "error", Message: err.Error()}}
	}
	if !exists {
		return []checkResult{{Name: "file_exists", Status: "warning", Message: "file does not exist; apply will create it"}}
	}

	results := []checkResult{{Name: "file_readable", Status: "ok", Message: cfg.File}}

	if err := tomlcheck.Validate(text); err != nil {
		results = append(results, checkResult{Name: "toml_valid", Status: "error", Message: err.Error()})
	} else {
		results = append(results, checkResult{Name: "toml_valid", Status: "ok", Message: "file decodes as TOML"})
	}

	if names := section.Sections(text); len(names) > 0 {
		results = append(results, checkResult{Name: "sections", Status: "ok",
			Message: strings.Join(names, ", ")})
	} else {
		results = append(results, checkResult{Name: "sections", Status: "ok",
			Message: "no section headers"})
	}

	switch n := section.Occurrences(text, cfg.Section); {
	case n == 0:
		results = append(results, checkResult{Name: "section_present", Status: "warning",
			Message: fmt.Sprintf("[%s] not found", cfg.Section)})
	case n > 1:
		results = append(results, checkResult{Name: "section_present", Status: "warning",
			Message: fmt.Sprintf("[%s] appears %d times; apply will collapse it", cfg.Section, n)})
	default:
		results = append(results, checkResult{Name: "section_present", Status: "ok",
			Message: fmt.Sprintf("[%s] appears once", cfg.Section)})
	}

	value, found := section.Lookup(text, cfg.Section, cfg.Key)
	if !found {
		results = append(results, checkResult{Name: "directive_set", Status: "warning",
			Message: fmt.Sprintf("%s is not set", cfg.Key)})
		return results
	}
	results = append(results, checkResult{Name: "directive_set", Status: "ok",
		Message: fmt.Sprintf("%s = %q", cfg.Key, value)})

	// A wrapper-style value should point at an executable.
	if info, err := os.Stat(value); err == nil && !info.IsDir() && info.Mode().Perm()&0o111 != 0 {
		results = append(results, checkResult{Name: "directive_target", Status: "ok", Message: value + " is executable"})
	} else if err == nil {
		results = append(results, checkResult{Name: "directive_target", Status: "warning", Message: value + " is not an executable file"})
	}

	return results
}

// checkJournal reports whether the journal exists and is migrated.
func checkJournal(path string) checkResult {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return checkResult{Name: "journal", Status: "ok", Message: "no journal yet; it is created on first apply"}
	}
	database, err := db.Open(path)
	if err != nil {
		return checkResult{Name: "journal", Status: "error", Message: err.Error()}
	}
	defer database.Close()

	if err := database.RequiresMigrationError(); err != nil {
		return checkResult{Name: "journal", Status: "warning", Message: err.Error()}
	}
	return checkResult{Name: "journal", Status: "ok", Message: path}
}
