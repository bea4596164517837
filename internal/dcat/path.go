package dcat

import "io/fs"

// Path is an absolute, stat-ed filesystem path. FilesystemManager.Resolve
// is the only producer outside tests.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath assembles a Path. FilesystemManager implementations call it.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, isDir: isDir, info: info}
}

func (p *Path) String() string { return p.absPath }

func (p *Path) IsDir() bool { return p.isDir }

// Info is the stat taken when the path was resolved.
func (p *Path) Info() fs.FileInfo { return p.info }
