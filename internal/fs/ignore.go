package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the root of every scanned directory.
const IgnoreFileName = ".dcatignore"

// ignoreRule is one parsed line of an ignore list.
type ignoreRule struct {
	glob     string
	anchored bool // Contains '/': matched against the path from the scan root
	dirOnly  bool // Trailing '/': only matches directories
	negate   bool // Leading '!': re-includes what earlier rules excluded
}

// IgnoreMatcher decides which paths below a scan root are skipped.
// Rules are evaluated in order and the last matching rule wins.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher parses raw lines. Blank lines and '#' comments are
// skipped. The ignore file itself is always ignored.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{rules: []ignoreRule{{glob: IgnoreFileName}}}
	m.Add(lines...)
	return m
}

// Add appends rules, which take precedence over the existing ones.
func (m *IgnoreMatcher) Add(lines ...string) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var r ignoreRule
		if strings.HasPrefix(line, "!") {
			r.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}
		r.glob = line
		r.anchored = strings.Contains(line, "/")
		m.rules = append(m.rules, r)
	}
}

// Match reports whether relPath, relative to the scan root, is ignored.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	slashed := filepath.ToSlash(relPath)
	base := path.Base(slashed)

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.anchored {
			subject = slashed
		}
		ok, err := path.Match(r.glob, subject)
		if err != nil || !ok {
			continue
		}
		ignored = !r.negate
	}
	return ignored
}

// Len is the number of rules, the built-in one included.
func (m *IgnoreMatcher) Len() int {
	return len(m.rules)
}

// ParseIgnoreFile returns the raw lines of an ignore file, or nil when it
// does not exist.
func ParseIgnoreFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
