// Package security validates file paths taken from flags and requests.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDirectory is returned for paths that resolve outside every
// allowed directory.
var ErrOutsideDirectory = errors.New("path escapes allowed directory")

// maxFilenameLen bounds SanitizeFilename results.
const maxFilenameLen = 128

// canonical resolves symlinks in path, or in its deepest existing parent
// when path does not exist yet.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	rest := ""
	for dir := abs; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// ValidatePathWithinDirectory rejects path if, after resolving ".." and
// symlinks, it is not inside dir.
func ValidatePathWithinDirectory(path, dir string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	d, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("resolve directory %q: %w", dir, err)
	}
	if d, err = filepath.Abs(d); err != nil {
		return err
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s: %w %s", path, ErrOutsideDirectory, dir)
	}
	return nil
}

// ValidateExportPath accepts path when it lies inside one of dirs. With
// no dirs the working and temp directories are allowed.
func ValidateExportPath(path string, dirs ...string) error {
	if len(dirs) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		dirs = []string{cwd, os.TempDir()}
	}
	for _, d := range dirs {
		if ValidatePathWithinDirectory(path, d) == nil {
			return nil
		}
	}
	return fmt.Errorf("%s: %w %v", path, ErrOutsideDirectory, dirs)
}

// SanitizeFilename keeps ASCII letters, digits, dots, underscores and
// dashes, collapsing every other run of characters into one underscore.
func SanitizeFilename(s string) string {
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	if out := strings.Trim(b.String(), "._"); out != "" {
		return out
	}
	return "unknown"
}
