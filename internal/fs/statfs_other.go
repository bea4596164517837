//go:build !linux

package fs

import "errors"

func statfsUsage(mountPoint string) (total, free int64, err error) {
	return 0, 0, errors.New("volume usage is only probed on linux")
}
