package store

import (
	"context"
	"fmt"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// Transform computes new file content from the current content. A nil
// existing means the file does not exist.
type Transform func(existing *string) (string, error)

// Result describes a completed Update.
type Result struct {
	Path    string
	Before  string
	After   string
	Existed bool
	Changed bool
}

// LockPath returns the advisory lock file used for path.
func LockPath(path string) string {
	return path + ".lock"
}

// Update runs load, fn and save under the advisory lock for path. Lock
// acquisition is retried until ctx is done. Content equal to what is on
// disk is not rewritten.
func (s *Store) Update(ctx context.Context, path string, fn Transform) (Result, error) {
	res := Result{Path: path}

	unlock, err := s.lock(ctx, path)
	if err != nil {
		return res, err
	}
	defer unlock()

	before, existed, err := s.Load(path)
	if err != nil {
		return res, err
	}
	res.Before, res.Existed = before, existed

	var existing *string
	if existed {
		existing = &before
	}
	after, err := fn(existing)
	if err != nil {
		return res, err
	}
	res.After = after

	if existed && after == before {
		s.logger.Debug("config file unchanged", zap.String("path", path))
		return res, nil
	}
	if err := s.Save(path, after); err != nil {
		return res, err
	}
	res.Changed = true
	return res, nil
}

func (s *Store) lock(ctx context.Context, path string) (func(), error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	retry := s.LockRetry
	if retry <= 0 {
		retry = DefaultLockRetry
	}

	fl := flock.New(LockPath(path))
	ok, err := fl.TryLockContext(ctx, retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLock, fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is held by another process", ErrLock, fl.Path())
	}
	s.logger.Debug("lock acquired", zap.String("lock", fl.Path()))

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release lock", zap.String("lock", fl.Path()), zap.Error(err))
		}
	}, nil
}

// WithLock runs fn while holding the advisory lock for path.
func (s *Store) WithLock(ctx context.Context, path string, fn func() error) error {
	unlock, err := s.lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
