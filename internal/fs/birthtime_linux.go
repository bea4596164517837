package fs

import (
	"database/sql"
	"time"

	"golang.org/x/sys/unix"

	"dcat-go/internal/dcat"
)

// BirthTime asks statx for the creation time. Filesystems that do not
// record one leave it null.
func (m *OSFilesystemManager) BirthTime(path *dcat.Path) sql.NullTime {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path.String(), unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)).UTC(), Valid: true}
}
