// Package installer supplies the executable path that the hook merges into
// the configuration file.
package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrInstall is returned when no usable executable could be produced.
var ErrInstall = errors.New("install failure")

// Installer provides an executable inside dir and returns its absolute path.
type Installer interface {
	Install(dir string) (string, error)
}

// Resolver is an Installer backed by an executable that already exists.
// It never creates or modifies files.
//
// Program may be an absolute path, a path relative to dir, or a bare name.
// Bare names are looked up in dir first and then on $PATH.
type Resolver struct {
	Program string
}

// Install resolves r.Program and returns its absolute path.
func (r Resolver) Install(dir string) (string, error) {
	if r.Program == "" {
		return "", fmt.Errorf("%w: no program configured", ErrInstall)
	}

	for _, candidate := range r.candidates(dir) {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if err := checkExecutable(abs); err == nil {
			return abs, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrInstall, abs, err)
		}
	}

	if filepath.Base(r.Program) == r.Program {
		found, err := exec.LookPath(r.Program)
		if err == nil {
			return filepath.Abs(found)
		}
	}
	return "", fmt.Errorf("%w: %q not found", ErrInstall, r.Program)
}

func (r Resolver) candidates(dir string) []string {
	if filepath.IsAbs(r.Program) {
		return []string{r.Program}
	}
	if dir == "" {
		if filepath.Base(r.Program) == r.Program {
			return nil
		}
		return []string{r.Program}
	}
	return []string{filepath.Join(dir, r.Program)}
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("not executable (mode %s)", info.Mode().Perm())
	}
	return nil
}
