package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log", "!keep.log", "build/", "/"})
	if got := m.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name    string
		rules   []string
		relPath string
		isDir   bool
		want    bool
	}{
		{"ignore file always ignored", nil, IgnoreFileName, false, true},
		{"ignore file in subdirectory", nil, filepath.Join("sub", IgnoreFileName), false, true},
		{"no rules", nil, "anything.txt", false, false},
		{"empty path", []string{"*"}, "", false, false},
		{"basename glob in root", []string{"*.log"}, "app.log", false, true},
		{"basename glob in subdirectory", []string{"*.log"}, filepath.Join("a", "b", "app.log"), false, true},
		{"basename glob other extension", []string{"*.log"}, "app.txt", false, false},
		{"anchored path", []string{"build/output"}, filepath.Join("build", "output"), false, true},
		{"anchored path elsewhere", []string{"build/output"}, filepath.Join("src", "build", "output"), false, false},
		{"leading slash anchors nothing extra", []string{"/*.o"}, "main.o", false, true},
		{"anchored glob", []string{"build/*.o"}, filepath.Join("build", "main.o"), false, true},
		{"dir rule matches directory", []string{"node_modules/"}, "node_modules", true, true},
		{"dir rule skips file", []string{"node_modules/"}, "node_modules", false, false},
		{"negation re-includes", []string{"*.log", "!keep.log"}, "keep.log", false, false},
		{"negation leaves others", []string{"*.log", "!keep.log"}, "drop.log", false, true},
		{"later rule wins", []string{"!keep.log", "*.log"}, "keep.log", false, true},
		{"character class", []string{"*.[oa]"}, "lib.a", false, true},
		{"bad pattern ignored", []string{"[", "*.tmp"}, "x.tmp", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewIgnoreMatcher(tt.rules)
			if got := m.Match(tt.relPath, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.relPath, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads raw lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), IgnoreFileName)
		if err := os.WriteFile(path, []byte("*.log\n# comment\n\n*.tmp\nbuild/\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		lines, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(lines) != 5 {
			t.Fatalf("ParseIgnoreFile() returned %d lines, want 5", len(lines))
		}
		if got := NewIgnoreMatcher(lines).Len(); got != 4 {
			t.Errorf("Len() = %d, want 4", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		lines, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil || lines != nil {
			t.Errorf("ParseIgnoreFile() = %v, %v, want nil, nil", lines, err)
		}
	})
}
