// Package store reads and writes configuration files for the merger.
//
// Writes go through a temporary file in the target directory followed by
// an atomic rename, and the read-modify-write cycle in Update runs under an
// advisory lock held on a sibling ".lock" file.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrRead is returned when an existing file cannot be read.
	ErrRead = errors.New("read failure")
	// ErrWrite is returned when the result cannot be written.
	ErrWrite = errors.New("write failure")
	// ErrLock is returned when the advisory lock cannot be acquired.
	ErrLock = errors.New("lock failure")
)

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755

	// DefaultLockRetry is how often Update retries a contended lock.
	DefaultLockRetry = 50 * time.Millisecond
)

// Store loads and saves configuration text.
type Store struct {
	// LockRetry is the delay between lock attempts. Zero means DefaultLockRetry.
	LockRetry time.Duration

	logger *zap.Logger
}

// New creates a Store. A nil logger discards log output.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger}
}

// Load returns the file's content. A missing file is not an error: exists
// is false and text is empty.
func (s *Store) Load(path string) (text string, exists bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("config file absent", zap.String("path", path))
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	return string(data), true, nil
}

// Save atomically replaces path with text. The previous file mode is kept;
// new files get 0644. Missing parent directories are created. When path is
// a symlink the file it points to is replaced and the link is kept.
func (s *Store) Save(path, text string) error {
	path, err := resolveTarget(path)
	if err != nil {
		return err
	}

	mode := fs.FileMode(defaultFileMode)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", ErrWrite, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write %s: %w", ErrWrite, tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to sync %s: %w", ErrWrite, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %w", ErrWrite, tmpPath, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("%w: failed to set mode on %s: %w", ErrWrite, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: failed to replace %s: %w", ErrWrite, path, err)
	}

	s.logger.Debug("config file saved", zap.String("path", path), zap.Int("bytes", len(text)))
	return nil
}

// Remove deletes path, or the file it links to. A missing file is not an
// error.
func (s *Store) Remove(path string) error {
	path, err := resolveTarget(path)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove %s: %w", ErrWrite, path, err)
	}
	return nil
}

// maxLinks bounds symlink chains, matching the usual kernel limit.
const maxLinks = 40

// resolveTarget follows symlinks from path to the file a write should
// replace. A dangling link resolves to the missing file it names.
func resolveTarget(path string) (string, error) {
	for i := 0; i < maxLinks; i++ {
		info, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			return path, nil
		}

		link, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("%w: failed to read link %s: %w", ErrWrite, path, err)
		}
		if !filepath.IsAbs(link) {
			link = filepath.Join(filepath.Dir(path), link)
		}
		path = link
	}
	return "", fmt.Errorf("%w: %s: too many levels of symbolic links", ErrWrite, path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %w", ErrWrite, dir, err)
	}
	return nil
}
