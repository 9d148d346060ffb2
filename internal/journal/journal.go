// Package journal records every merge applied to a configuration file so
// it can be listed and reverted later.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lherron/sectmerge/internal/db"
)

var (
	// ErrNotFound is returned when no entry matches an ID.
	ErrNotFound = errors.New("journal entry not found")
	// ErrAmbiguous is returned when an ID prefix matches several entries.
	ErrAmbiguous = errors.New("journal entry ID is ambiguous")
)

// MinPrefix is the shortest ID prefix Get accepts.
const MinPrefix = 8

// Source values recorded with each entry.
const (
	SourceApply   = "apply"
	SourceHook    = "hook"
	SourceRestore = "restore"
)

// Entry is one recorded merge.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Path      string    `json:"path" yaml:"path"`
	Section   string    `json:"section" yaml:"section"`
	Key       string    `json:"key" yaml:"key"`
	Value     string    `json:"value" yaml:"value"`
	Before    string    `json:"-" yaml:"-"`
	After     string    `json:"-" yaml:"-"`
	Existed   bool      `json:"existed" yaml:"existed"`
	Changed   bool      `json:"changed" yaml:"changed"`
	Source    string    `json:"source" yaml:"source"`
	AppliedAt time.Time `json:"applied_at" yaml:"applied_at"`
}

// ShortID returns the first MinPrefix characters of the entry ID.
func (e Entry) ShortID() string {
	if len(e.ID) <= MinPrefix {
		return e.ID
	}
	return e.ID[:MinPrefix]
}

// Journal stores entries in SQLite.
type Journal struct {
	db  *db.DB
	now func() time.Time
}

// Open opens (creating if needed) and migrates the journal at path.
func Open(path string) (*Journal, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return &Journal{db: database, now: time.Now}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the journal database path.
func (j *Journal) Path() string {
	return j.db.Path()
}

// Record stores e, assigning an ID and timestamp when they are unset.
func (j *Journal) Record(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.AppliedAt.IsZero() {
		e.AppliedAt = j.now()
	}
	e.AppliedAt = e.AppliedAt.UTC()
	if e.Source == "" {
		e.Source = SourceApply
	}

	_, err := j.db.Exec(`
		INSERT INTO entries (id, path, section, key, value, before_text, after_text, existed, changed, source, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Path, e.Section, e.Key, e.Value, e.Before, e.After, e.Existed, e.Changed, e.Source,
		e.AppliedAt.Format(timeFormat))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record journal entry: %w", err)
	}
	return e, nil
}

// List returns entries newest first. An empty path lists all files; a
// limit of zero or less means no limit.
func (j *Journal) List(path string, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries`
	var args []any
	if path != "" {
		query += ` WHERE path = ?`
		args = append(args, path)
	}
	query += ` ORDER BY applied_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal: %w", err)
	}
	return entries, nil
}

// Get returns the entry with the given ID or unique ID prefix.
func (j *Journal) Get(id string) (Entry, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if len(id) < MinPrefix {
		return Entry{}, fmt.Errorf("%w: %q (use at least %d characters)", ErrNotFound, id, MinPrefix)
	}

	rows, err := j.db.Query(`SELECT `+entryColumns+` FROM entries WHERE id LIKE ? || '%' LIMIT 2`, stripWildcards(id))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var matches []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return Entry{}, err
		}
		matches = append(matches, e)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, fmt.Errorf("error iterating journal: %w", err)
	}

	switch len(matches) {
	case 0:
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
}

// timeFormat has fixed width so applied_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const entryColumns = `id, path, section, key, value, before_text, after_text, existed, changed, source, applied_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var appliedAt string
	if err := row.Scan(&e.ID, &e.Path, &e.Section, &e.Key, &e.Value, &e.Before, &e.After,
		&e.Existed, &e.Changed, &e.Source, &appliedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("failed to scan journal entry: %w", err)
	}
	t, err := time.Parse(timeFormat, appliedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid applied_at %q: %w", appliedAt, err)
	}
	e.AppliedAt = t
	return e, nil
}

func stripWildcards(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}
