package testutil

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dcat-go/internal/dcat"
	"dcat-go/internal/model"
)

// MockFile is a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
	BornAt      sql.NullTime
	Unreadable  bool // Open fails
}

// MockFilesystemManager is an in-memory filesystem keyed by absolute path.
// Parent directories are created implicitly.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile
	now   time.Time
}

func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
		now:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

// AddFile adds (or replaces) a file and returns it for further tweaking.
func (m *MockFilesystemManager) AddFile(path string, content []byte) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.addParents(path)
	f := &MockFile{
		Content:     content,
		Permissions: 0o644,
		ModTime:     m.now,
	}
	m.files[path] = f
	return f
}

// AddDirectory adds an empty directory.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.addParents(path)
	m.files[path] = &MockFile{Permissions: fs.ModeDir | 0o755, ModTime: m.now, IsDirectory: true}
}

// RemoveFile deletes a path as if removed outside the catalog.
func (m *MockFilesystemManager) RemoveFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, filepath.Clean(path))
}

// Exists reports whether path is present.
func (m *MockFilesystemManager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{Permissions: fs.ModeDir | 0o755, ModTime: m.now, IsDirectory: true}
		}
		if dir == filepath.Dir(dir) {
			return
		}
	}
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*dcat.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	file, ok := m.files[absPath]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", absPath, fs.ErrNotExist)
	}
	return dcat.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *dcat.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	file, ok := m.files[path.String()]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path.String(), fs.ErrNotExist)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	if file.Unreadable {
		return nil, fmt.Errorf("open %s: %w", path.String(), fs.ErrPermission)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

// FindFiles lists files below a directory in path order.
func (m *MockFilesystemManager) FindFiles(path *dcat.Path, recursive bool) ([]*dcat.Path, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", path.String())
	}
	root := path.String()
	prefix := strings.TrimSuffix(root, string(filepath.Separator)) + string(filepath.Separator)

	m.mu.Lock()
	var names []string
	for p, f := range m.files {
		if f.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && filepath.Dir(p) != root {
			continue
		}
		names = append(names, p)
	}
	m.mu.Unlock()

	sort.Strings(names)
	paths := make([]*dcat.Path, 0, len(names))
	for _, p := range names {
		resolved, err := m.Resolve(p)
		if err != nil {
			return nil, err
		}
		paths = append(paths, resolved)
	}
	return paths, nil
}

func (m *MockFilesystemManager) BirthTime(path *dcat.Path) sql.NullTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[path.String()]; ok {
		return f.BornAt
	}
	return sql.NullTime{}
}

func (m *MockFilesystemManager) Remove(path *dcat.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path.String()]
	if !ok {
		return fmt.Errorf("remove %s: %w", path.String(), fs.ErrNotExist)
	}
	if f.IsDirectory {
		return fmt.Errorf("refusing to remove directory: %s", path.String())
	}
	delete(m.files, path.String())
	return nil
}

type mockFileInfo struct {
	name string
	file *MockFile
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	return &mockFileInfo{name: filepath.Base(path), file: f}
}

func (i *mockFileInfo) Name() string       { return i.name }
func (i *mockFileInfo) Size() int64        { return int64(len(i.file.Content)) }
func (i *mockFileInfo) Mode() fs.FileMode  { return i.file.Permissions }
func (i *mockFileInfo) ModTime() time.Time { return i.file.ModTime }
func (i *mockFileInfo) IsDir() bool        { return i.file.IsDirectory }
func (i *mockFileInfo) Sys() any           { return nil }

var _ dcat.FilesystemManager = (*MockFilesystemManager)(nil)

// MockVolumeProber reports a fixed set of mounted volumes. Paths outside
// every mount fall on the root volume when one is mounted at "/".
type MockVolumeProber struct {
	mu        sync.Mutex
	mounts    map[string]*model.Drive
	err       error
	described int
}

func NewMockVolumeProber() *MockVolumeProber {
	return &MockVolumeProber{mounts: make(map[string]*model.Drive)}
}

// Mount attaches a volume observation at mountPoint.
func (p *MockVolumeProber) Mount(mountPoint string, observed *model.Drive) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := observed.Clone()
	d.DriveLetter = filepath.Clean(mountPoint)
	p.mounts[d.DriveLetter] = d
}

// Unmount detaches whatever is mounted at mountPoint.
func (p *MockVolumeProber) Unmount(mountPoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.mounts, filepath.Clean(mountPoint))
}

// FailWith makes every call fail with err; nil restores normal behavior.
func (p *MockVolumeProber) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// volumeFor returns the mounted volume whose mount point is the longest
// prefix of path. The caller holds p.mu.
func (p *MockVolumeProber) volumeFor(path string) (*model.Drive, error) {
	if p.err != nil {
		return nil, p.err
	}

	path = filepath.Clean(path)
	var best *model.Drive
	for mp, d := range p.mounts {
		if !within(mp, path) {
			continue
		}
		if best == nil || len(mp) > len(best.DriveLetter) {
			best = d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no volume holds %s", path)
	}
	return best, nil
}

func (p *MockVolumeProber) VolumeFor(path string) (*model.Drive, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.described++
	d, err := p.volumeFor(path)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

func (p *MockVolumeProber) MountPointFor(path string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, err := p.volumeFor(path)
	if err != nil {
		return "", err
	}
	return d.DriveLetter, nil
}

// Described counts the VolumeFor calls made so far.
func (p *MockVolumeProber) Described() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.described
}

func (p *MockVolumeProber) Volumes() ([]*model.Drive, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}

	out := make([]*model.Drive, 0, len(p.mounts))
	for _, d := range p.mounts {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriveLetter < out[j].DriveLetter })
	return out, nil
}

func within(mountPoint, path string) bool {
	if mountPoint == path || mountPoint == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, mountPoint+string(filepath.Separator))
}

var _ dcat.VolumeProber = (*MockVolumeProber)(nil)
