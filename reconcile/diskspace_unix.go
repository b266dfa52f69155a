//go:build !windows

package reconcile

import "syscall"

// freeBytes returns the free space available to an unprivileged user on
// the filesystem containing path, per spec.md §4.4 stage 1 ("usable free
// space on the temp filesystem").
func freeBytes(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
