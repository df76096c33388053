//go:build !windows

package service

import "syscall"

// freeDiskSpace returns the bytes available to unprivileged users on the
// filesystem holding dir, or 0 if it cannot be determined.
func freeDiskSpace(dir string) int64 {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err != nil {
		return 0
	}
	return int64(fs.Bavail) * int64(fs.Bsize)
}
