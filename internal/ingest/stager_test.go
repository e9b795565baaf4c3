package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

func TestStageAndRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s := NewStager(dir, nil)

	st, err := s.Stage(context.Background(), "Spec.PDF", strings.NewReader("%PDF-1.7 body"))
	require.NoError(t, err)

	assert.Len(t, st.ID, 32)
	assert.Equal(t, filepath.Join(dir, st.ID+".pdf"), st.Path)
	assert.EqualValues(t, 13, st.Size)

	hash, err := HashFile(st.Path)
	require.NoError(t, err)
	assert.Equal(t, st.HashHex, hash)

	s.Remove(st)
	_, err = os.Stat(st.Path)
	assert.True(t, os.IsNotExist(err))
	s.Remove(st)
}

func TestStageRejectsNonPDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	_, err := NewStager(dir, nil).Stage(context.Background(), "notes.docx", strings.NewReader("x"))

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "upload dir must not be created")
}
