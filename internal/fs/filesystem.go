package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dcat-go/internal/dcat"
)

// OSFilesystemManager is the FilesystemManager backed by the os package.
type OSFilesystemManager struct {
	ignore     []string
	skipHidden bool
}

// NewOSFilesystemManager returns a manager that applies the configured
// ignore rules, then each scan root's .dcatignore, to every scan. With
// skipHidden, dot files and dot directories are left out.
func NewOSFilesystemManager(ignore []string, skipHidden bool) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore, skipHidden: skipHidden}
}

// Resolve makes rawPath absolute and stats it. Only regular files and
// directories are accepted.
func (m *OSFilesystemManager) Resolve(rawPath string) (*dcat.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file or directory: %s (%s)", absPath, info.Mode().Type())
	}
	return dcat.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *dcat.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Remove deletes a file. Directories are refused.
func (m *OSFilesystemManager) Remove(path *dcat.Path) error {
	if path.IsDir() {
		return fmt.Errorf("refusing to remove directory: %s", path.String())
	}
	return os.Remove(path.String())
}

// FindFiles lists the regular files below a directory. Ignored and hidden
// directories are not descended into.
func (m *OSFilesystemManager) FindFiles(path *dcat.Path, recursive bool) ([]*dcat.Path, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", path.String())
	}
	root := path.String()

	local, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(m.ignore)
	matcher.Add(local...)

	var paths []*dcat.Path
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if m.skipped(d.Name(), rel, d.IsDir(), matcher) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		paths = append(paths, dcat.NewPath(p, false, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return paths, nil
}

func (m *OSFilesystemManager) skipped(name, rel string, isDir bool, matcher *IgnoreMatcher) bool {
	if m.skipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	return matcher.Match(rel, isDir)
}

var _ dcat.FilesystemManager = (*OSFilesystemManager)(nil)
