//go:build !windows

package export

import (
	"errors"
	"io/fs"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLocked(t *testing.T) {
	assert.True(t, isLocked(&fs.PathError{Err: syscall.EACCES}))
	assert.True(t, isLocked(&fs.PathError{Err: syscall.EBUSY}))
	assert.True(t, isLocked(&fs.PathError{Err: syscall.ETXTBSY}))
	assert.False(t, isLocked(&fs.PathError{Err: syscall.ENOSPC}))
	assert.False(t, isLocked(errors.New("zip: write error")))
}
