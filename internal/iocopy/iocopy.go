// Package iocopy implements the carve writer: copying a byte range out
// of a host file into a new output file using a kernel copy path when
// the platform offers one.
package iocopy

import (
	"fmt"
	"io"
	"os"
)

// outMode is the permission every carved output file is created with.
const outMode = 0600

// CarveFile copies length bytes starting at base from src into a new
// file at dstPath, created with mode 0600. It uses the platform's
// zero-copy file-to-file transfer when available (see copy_linux.go),
// falling back to a buffered copy loop elsewhere.
//
// On any error the partially written destination file is removed
// before CarveFile returns, so a failed carve never leaves output
// behind.
func CarveFile(src *os.File, base, length int64, dstPath string) (err error) {
	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, outMode)
	if err != nil {
		return fmt.Errorf("iocopy: creating %q: %w", dstPath, err)
	}
	defer func() {
		cerr := dst.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dstPath)
		}
	}()

	if err = copyRange(dst, src, base, length); err != nil {
		return fmt.Errorf("iocopy: copying %d bytes from offset %d: %w", length, base, err)
	}
	return nil
}

// fallbackCopy is the buffered-loop implementation used on platforms
// without a kernel copy primitive, and as the retry path when the
// kernel primitive declines (e.g. cross-filesystem copies).
func fallbackCopy(dst *os.File, src *os.File, base, length int64) error {
	sr := io.NewSectionReader(src, base, length)
	n, err := io.Copy(dst, sr)
	if err != nil {
		return err
	}
	if n != length {
		return fmt.Errorf("iocopy: short copy: wrote %d of %d bytes", n, length)
	}
	return nil
}
