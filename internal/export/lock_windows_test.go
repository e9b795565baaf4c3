//go:build windows

package export

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sys/windows"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

func TestWriteXLSXRetriesSharingViolation(t *testing.T) {
	calls := 0
	svc := NewService(quiet(),
		WithSaveFunc(func(*excelize.File, string) error {
			calls++
			if calls < 2 {
				return &fs.PathError{Op: "open", Path: "x.xlsx", Err: windows.ERROR_SHARING_VIOLATION}
			}
			return nil
		}),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	)

	policy := SavePolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	require.NoError(t, svc.WriteXLSX(context.Background(), nil, filepath.Join(t.TempDir(), "x.xlsx"), policy))
	assert.Equal(t, 2, calls)
}

func TestIsLockedWindowsErrnos(t *testing.T) {
	assert.True(t, isLocked(&fs.PathError{Err: windows.ERROR_SHARING_VIOLATION}))
	assert.True(t, isLocked(&fs.PathError{Err: windows.ERROR_LOCK_VIOLATION}))
	assert.True(t, isLocked(&fs.PathError{Err: windows.ERROR_ACCESS_DENIED}))
	assert.False(t, isLocked(&fs.PathError{Err: windows.ERROR_DISK_FULL}))

	err := NewService(quiet(),
		WithSaveFunc(func(*excelize.File, string) error {
			return &fs.PathError{Op: "open", Path: "x.xlsx", Err: windows.ERROR_LOCK_VIOLATION}
		}),
	).WriteXLSX(context.Background(), nil, filepath.Join(t.TempDir(), "x.xlsx"), FailFast)
	assert.ErrorIs(t, err, common.ErrFileLocked)
}
