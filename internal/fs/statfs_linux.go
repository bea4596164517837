package fs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func statfsUsage(mountPoint string) (total, free int64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(mountPoint, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", mountPoint, err)
	}
	bsize := int64(st.Bsize)
	return int64(st.Blocks) * bsize, int64(st.Bavail) * bsize, nil
}
