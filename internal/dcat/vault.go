package dcat

import (
	"errors"
	"io"
)

// ErrSnapshotNotFound is returned by GetSnapshot when nothing is stored.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Vault keeps off-machine copies of catalog snapshots. Snapshots are
// addressed by machine and name and carry a version, the id of the
// operation that produced them.
type Vault interface {
	// PutSnapshot stores size bytes read from r.
	PutSnapshot(machine, name string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes a stored snapshot to w.
	GetSnapshot(machine, name string, w io.Writer) error

	// SnapshotVersion returns the stored version, or 0 when there is none.
	SnapshotVersion(machine, name string) (int64, error)

	// ValidateSetup checks that the vault is reachable and writable.
	ValidateSetup() error
}
