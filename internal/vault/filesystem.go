package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dcat-go/internal/dcat"
)

// FileSystemVault keeps snapshots in a directory, typically on another
// disk or a synced folder:
//
//	<root>/
//	  <machine>/
//	    <name>          (snapshot bytes)
//	    <name>.version  (decimal version)
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates the vault root if needed.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating vault root: %w", err)
	}
	return &FileSystemVault{name: name, root: root}, nil
}

func (v *FileSystemVault) snapshotPath(machine, name string) (string, error) {
	for _, part := range []string{machine, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid snapshot name %q", part)
		}
	}
	return filepath.Join(v.root, machine, name), nil
}

// PutSnapshot writes the snapshot atomically, then its version.
func (v *FileSystemVault) PutSnapshot(machine, name string, r io.Reader, size int64, version int64) error {
	dest, err := v.snapshotPath(machine, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("creating machine directory: %w", err)
	}
	if err := writeAtomic(dest, r, size); err != nil {
		return err
	}
	return writeAtomic(dest+".version", strings.NewReader(strconv.FormatInt(version, 10)), -1)
}

// GetSnapshot copies a stored snapshot to w.
func (v *FileSystemVault) GetSnapshot(machine, name string, w io.Writer) error {
	src, err := v.snapshotPath(machine, name)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s/%s: %w", machine, name, dcat.ErrSnapshotNotFound)
	}
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion reads the version file, or returns 0 without one.
func (v *FileSystemVault) SnapshotVersion(machine, name string) (int64, error) {
	src, err := v.snapshotPath(machine, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(src + ".version")
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the root is a writable directory.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	probe, err := os.CreateTemp(v.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeAtomic writes r to a temp file beside dest and renames it into
// place. A non-negative size must match the bytes written.
func writeAtomic(dest string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err == nil {
		err = os.Rename(tmpPath, dest)
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(dest), err)
	}
	return nil
}

var _ dcat.Vault = (*FileSystemVault)(nil)
