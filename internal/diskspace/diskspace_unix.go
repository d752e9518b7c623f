//go:build !windows

package diskspace

import "golang.org/x/sys/unix"

func statfs(dir string) (free, total int64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return Unknown, Unknown, err
	}
	// Bavail is what an unprivileged user may still write
	free = int64(stat.Bavail) * int64(stat.Bsize)
	total = int64(stat.Blocks) * int64(stat.Bsize)
	return free, total, nil
}
