//go:build windows

package export

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/windows"
)

// isLocked reports whether a save failed because another process holds the file.
// Excel keeps an open workbook under a sharing lock, which the os package does
// not map to fs.ErrPermission.
func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
