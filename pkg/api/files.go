package api

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrFilesDisabled is returned for file paths when the server has no keyboard directory
	ErrFilesDisabled = errors.New("keyboard files are disabled: no keyboard directory configured")
	// ErrPathOutsideDir is returned for paths that are absolute or leave the keyboard directory
	ErrPathOutsideDir = errors.New("path must be relative to the keyboard directory")
)

// WithKeyboardDir lets sessions open and save files below dir. Request
// paths are relative to it. Without a directory every file path is refused.
func WithKeyboardDir(dir string) Option {
	return func(s *Server) {
		if dir == "" {
			s.dir = ""
			return
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		s.dir = filepath.Clean(dir)
	}
}

// resolve maps a request path into the keyboard directory
func (s *Server) resolve(rel string) (string, error) {
	if s.dir == "" {
		return "", ErrFilesDisabled
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideDir, rel)
	}
	return filepath.Join(s.dir, rel), nil
}

// relative is the inverse of resolve. Paths outside the directory are hidden.
func (s *Server) relative(path string) string {
	if s.dir == "" || path == "" {
		return ""
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || !filepath.IsLocal(rel) {
		return ""
	}
	return filepath.ToSlash(rel)
}
