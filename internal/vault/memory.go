package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"dcat-go/internal/dcat"
)

type memorySnapshot struct {
	data    []byte
	version int64
}

// MemoryVault keeps snapshots in memory. Tests and the "memory" vault type
// use it. It is safe for concurrent use.
type MemoryVault struct {
	name      string
	mu        sync.RWMutex
	snapshots map[string]memorySnapshot // "machine/name"
}

// NewMemoryVault returns an empty vault.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{name: name, snapshots: make(map[string]memorySnapshot)}
}

func snapshotKey(machine, name string) string {
	return machine + "/" + name
}

// PutSnapshot stores a snapshot, replacing any earlier one.
func (m *MemoryVault) PutSnapshot(machine, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshotKey(machine, name)] = memorySnapshot{data: data, version: version}
	return nil
}

// GetSnapshot writes a stored snapshot to w.
func (m *MemoryVault) GetSnapshot(machine, name string, w io.Writer) error {
	m.mu.RLock()
	snap, ok := m.snapshots[snapshotKey(machine, name)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s/%s: %w", machine, name, dcat.ErrSnapshotNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(snap.data)); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns the stored version, or 0.
func (m *MemoryVault) SnapshotVersion(machine, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[snapshotKey(machine, name)].version, nil
}

// ValidateSetup always succeeds.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

var _ dcat.Vault = (*MemoryVault)(nil)
