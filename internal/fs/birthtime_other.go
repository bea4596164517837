//go:build !linux

package fs

import (
	"database/sql"

	"dcat-go/internal/dcat"
)

// BirthTime is not available on this platform.
func (m *OSFilesystemManager) BirthTime(path *dcat.Path) sql.NullTime {
	return sql.NullTime{}
}
