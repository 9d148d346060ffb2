// Package hook runs the install, merge and persist steps as one
// best-effort pipeline.
//
// Each step's failure is logged as a warning and collected in the Report;
// Run never fails the caller. Later steps are skipped only when they depend
// on the failed step's output: without an executable path there is nothing
// to merge, and a file that cannot be read is never overwritten. This can
// leave partially applied state, such as an executable resolved but the
// configuration unchanged.
package hook

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/lherron/sectmerge/internal/installer"
	"github.com/lherron/sectmerge/internal/journal"
	"github.com/lherron/sectmerge/internal/section"
	"github.com/lherron/sectmerge/internal/store"
	"github.com/lherron/sectmerge/internal/tomlcheck"
)

// Updater performs a locked read-merge-write cycle.
type Updater interface {
	Update(ctx context.Context, path string, fn store.Transform) (store.Result, error)
}

// Recorder keeps a history of applied merges.
type Recorder interface {
	Record(e journal.Entry) (journal.Entry, error)
}

// Hook wires an Installer, the config store and the journal around
// section.Merge.
type Hook struct {
	Installer installer.Installer
	Store     Updater
	Journal   Recorder // optional
	Logger    *zap.Logger

	// Path is the configuration file to update.
	Path string
	// Dir is passed to the Installer.
	Dir string
	// Section and Key name the directive; its value comes from the Installer.
	Section string
	Key     string
	// Validate refuses to write a result that does not decode as TOML.
	Validate bool
}

// Report summarizes a Run.
type Report struct {
	Value     string
	Directive section.Directive
	Result    store.Result
	Entry     *journal.Entry
	// Err collects every step failure; nil when all steps succeeded.
	Err error
}

// OK reports whether every step succeeded.
func (r Report) OK() bool {
	return r.Err == nil
}

// Run executes the pipeline.
func (h *Hook) Run(ctx context.Context) Report {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("path", h.Path))

	var rep Report
	var errs *multierror.Error

	value, err := h.Installer.Install(h.Dir)
	if err != nil {
		logger.Warn("install step failed; configuration left unchanged", zap.Error(err))
		rep.Err = multierror.Append(errs, err).ErrorOrNil()
		return rep
	}
	rep.Value = value
	logger.Debug("executable resolved", zap.String("value", value))

	d := section.Directive{Section: h.Section, Key: h.Key, Value: value}
	rep.Directive = d
	if err := d.Validate(); err != nil {
		logger.Warn("merge step skipped", zap.Error(err))
		rep.Err = multierror.Append(errs, err).ErrorOrNil()
		return rep
	}

	res, err := h.Store.Update(ctx, h.Path, Transform(d, h.Validate))
	rep.Result = res
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRead):
			logger.Warn("config file unreadable; not overwriting it", zap.Error(err))
		case errors.Is(err, store.ErrLock):
			logger.Warn("config file is locked by another process", zap.Error(err))
		default:
			logger.Warn("merge step failed", zap.Error(err))
		}
		rep.Err = multierror.Append(errs, err).ErrorOrNil()
		return rep
	}

	if res.Changed {
		logger.Info("directive merged",
			zap.String("section", d.Section),
			zap.String("key", d.Key),
			zap.String("value", d.Value),
			zap.Bool("created", !res.Existed))
	} else {
		logger.Info("directive already up to date",
			zap.String("section", d.Section),
			zap.String("key", d.Key))
	}

	if h.Journal != nil {
		entry, err := h.Journal.Record(journal.Entry{
			Path:    h.Path,
			Section: d.Section,
			Key:     d.Key,
			Value:   d.Value,
			Before:  res.Before,
			After:   res.After,
			Existed: res.Existed,
			Changed: res.Changed,
			Source:  journal.SourceHook,
		})
		if err != nil {
			logger.Warn("journal step failed; the file was still updated", zap.Error(err))
			errs = multierror.Append(errs, err)
		} else {
			rep.Entry = &entry
		}
	}

	rep.Err = errs.ErrorOrNil()
	return rep
}

// Transform adapts section.Merge to store.Update. With validate set, a
// result that does not decode as TOML is rejected and nothing is written.
func Transform(d section.Directive, validate bool) store.Transform {
	return func(existing *string) (string, error) {
		merged := section.Merge(existing, d)
		if validate {
			if err := tomlcheck.Validate(merged); err != nil {
				return "", fmt.Errorf("merged result rejected: %w", err)
			}
		}
		return merged, nil
	}
}
