package model

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// RootDirectory is the DirectoryPath of files at a drive's mount point.
const RootDirectory = "."

// File is a catalog record for one file on one drive. DirectoryPath is
// slash-separated and relative to the drive's mount point so the record
// survives the drive being mounted somewhere else.
type File struct {
	ID            int64
	DriveID       sql.NullInt64 // Null when the drive could not be resolved
	DirectoryPath string
	FileName      string
	Size          int64
	Mode          uint32 // fs.FileMode bits at last observation
	IsReadOnly    bool
	BornAt        sql.NullTime // Creation time, when the filesystem records it
	ModifiedAt    time.Time
	Exists        bool
	DeletedAt     sql.NullTime // Set once when the file is first found missing
	ContentHash   string       // Encoded digest; empty until computed
	CRC32         sql.NullInt64
	Notes         string
}

// Observation is what a scan saw of a file on disk.
type Observation struct {
	DirectoryPath string
	FileName      string
	Info          fs.FileInfo
	BornAt        sql.NullTime
}

// CopyFrom refreshes the record from an observation of an existing file.
// Hash fields survive only if the size is unchanged. A previously
// soft-deleted record becomes live again.
func (f *File) CopyFrom(obs Observation) *File {
	f.DirectoryPath = obs.DirectoryPath
	f.FileName = obs.FileName
	f.Exists = true
	f.DeletedAt = sql.NullTime{}
	f.Mode = uint32(obs.Info.Mode())
	f.IsReadOnly = obs.Info.Mode().Perm()&0o222 == 0
	f.ModifiedAt = obs.Info.ModTime().UTC()
	if obs.BornAt.Valid {
		f.BornAt = sql.NullTime{Time: obs.BornAt.Time.UTC(), Valid: true}
	}

	if f.Size != obs.Info.Size() {
		f.Size = obs.Info.Size()
		f.ClearHashes()
	}
	return f
}

// MarkMissing soft-deletes the record. The first deletion time is kept.
func (f *File) MarkMissing(now time.Time) {
	f.Exists = false
	if !f.DeletedAt.Valid {
		f.DeletedAt = sql.NullTime{Time: now.UTC(), Valid: true}
	}
}

// ClearHashes forgets the content hash and CRC.
func (f *File) ClearHashes() {
	f.ContentHash = ""
	f.CRC32 = sql.NullInt64{}
}

// NeedsHash reports whether the digest or CRC is missing. A zero CRC on a
// non-empty file counts as missing.
func (f *File) NeedsHash() bool {
	return f.ContentHash == "" || f.NeedsCRC()
}

// NeedsCRC reports whether the CRC alone is missing.
func (f *File) NeedsCRC() bool {
	return !f.CRC32.Valid || (f.CRC32.Int64 == 0 && f.Size != 0)
}

// SetCRC32 stores a checksum.
func (f *File) SetCRC32(sum uint32) {
	f.CRC32 = sql.NullInt64{Int64: int64(sum), Valid: true}
}

// RelativePath is the slash-separated path below the mount point.
func (f *File) RelativePath() string {
	return path.Join(f.DirectoryPath, f.FileName)
}

// Path rebuilds the absolute path under mountPoint.
func (f *File) Path(mountPoint string) string {
	return filepath.Join(mountPoint, filepath.FromSlash(f.DirectoryPath), f.FileName)
}

// SplitPath turns an absolute file path on a drive mounted at mountPoint
// into the DirectoryPath and FileName a File stores.
func SplitPath(mountPoint, absPath string) (dir, name string, err error) {
	rel, err := filepath.Rel(mountPoint, absPath)
	if err != nil {
		return "", "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s is not a file below %s", absPath, mountPoint)
	}
	dir, name = path.Split(filepath.ToSlash(rel))
	dir = path.Clean(dir)
	if dir == "" {
		dir = RootDirectory
	}
	return dir, name, nil
}
