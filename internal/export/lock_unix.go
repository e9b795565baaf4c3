//go:build !windows

package export

import (
	"errors"
	"io/fs"
	"syscall"
)

// isLocked reports whether a save failed because another process holds the file.
func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY)
}
