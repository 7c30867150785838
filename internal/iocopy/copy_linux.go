//go:build linux

package iocopy

import (
	"os"

	"golang.org/x/sys/unix"
)

// copyRange uses copy_file_range(2), an in-kernel file-to-file
// transfer that never stages the data in this process's address
// space. Kernels or filesystems that decline the syscall fall back to
// the buffered loop.
func copyRange(dst, src *os.File, base, length int64) error {
	off := base
	remaining := length
	for remaining > 0 {
		n, err := unix.CopyFileRange(int(src.Fd()), &off, int(dst.Fd()), nil, int(remaining), 0)
		if err != nil {
			if err == unix.ENOSYS || err == unix.EXDEV || err == unix.EINVAL {
				return fallbackCopy(dst, src, off, remaining)
			}
			return err
		}
		if n == 0 {
			break
		}
		remaining -= int64(n)
	}
	if remaining > 0 {
		return fallbackCopy(dst, src, off, remaining)
	}
	return nil
}
