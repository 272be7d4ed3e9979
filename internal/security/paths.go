// Package security guards the files the command line writes.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned for paths that escape every allowed directory.
var ErrOutsideAllowed = errors.New("path escapes the allowed directories")

// resolve returns the absolute form of path with symlinks resolved in its
// longest existing prefix, so a not-yet-created file under a symlinked
// directory resolves to its real location.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	rest := ""
	for dir := abs; ; dir = filepath.Dir(dir) {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(real, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
	}
}

// Within returns an error unless path lies inside dir once both are resolved.
func Within(path, dir string) error {
	p, err := resolve(path)
	if err != nil {
		return err
	}
	d, err := resolve(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is not under %s", ErrOutsideAllowed, path, dir)
	}
	return nil
}

// WithinAny accepts path if it lies inside any of dirs.
func WithinAny(path string, dirs ...string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("%w: no directories allowed", ErrOutsideAllowed)
	}
	for _, dir := range dirs {
		if Within(path, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be within one of %v", ErrOutsideAllowed, path, dirs)
}

// OutputPath validates a report or export destination: it must lie under the
// working directory or the system temp directory.
func OutputPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return WithinAny(path, cwd, os.TempDir())
}
