package dcat

import (
	"database/sql"
	"io"

	"dcat-go/internal/model"
)

// FilesystemManager is the catalog's view of the local filesystem.
type FilesystemManager interface {
	// Resolve makes rawPath absolute and stats it. A path that does not
	// exist yields an error wrapping fs.ErrNotExist.
	Resolve(rawPath string) (*Path, error)

	// Open opens a regular file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// FindFiles lists the regular files below a directory, honoring the
	// configured ignore rules.
	FindFiles(path *Path, recursive bool) ([]*Path, error)

	// BirthTime returns the creation time of a file when the filesystem
	// records one.
	BirthTime(path *Path) sql.NullTime

	// Remove deletes a file from disk.
	Remove(path *Path) error
}

// VolumeProber describes mounted volumes as drive observations: a
// model.Drive with ID 0 whose DriveLetter is the mount point.
type VolumeProber interface {
	// VolumeFor describes the volume holding path. The path need not exist.
	VolumeFor(path string) (*model.Drive, error)

	// MountPointFor returns the mount point of the volume holding path
	// without describing the volume.
	MountPointFor(path string) (string, error)

	// Volumes describes every mounted volume worth cataloguing.
	Volumes() ([]*model.Drive, error)
}
