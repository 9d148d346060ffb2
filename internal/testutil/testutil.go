// Package testutil holds helpers shared by tests that touch the filesystem
// or the journal.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lherron/sectmerge/internal/journal"
)

// TempJournal opens a migrated journal in a temporary directory
func TempJournal(t *testing.T) (*journal.Journal, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Failed to open test journal: %v", err)
	}

	t.Cleanup(func() {
		j.Close()
	})

	return j, path
}

// WriteFile writes content to dir/filename, creating parent directories
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

// Executable writes a stub shell script at dir/name with the given mode
func Executable(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := WriteFile(t, dir, name, "#!/bin/sh\nexit 0\n")
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("Failed to chmod %s: %v", path, err)
	}
	return path
}

// Entries lists every entry in the journal at path, newest first
func Entries(t *testing.T, path string) []journal.Entry {
	t.Helper()
	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Failed to open journal %s: %v", path, err)
	}
	defer j.Close()

	entries, err := j.List("", 0)
	if err != nil {
		t.Fatalf("Failed to list journal entries: %v", err)
	}
	return entries
}
