package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

// Stager writes uploads to Dir under fresh uuid names.
type Stager struct {
	Dir    string
	logger *slog.Logger
}

func NewStager(dir string, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stager{Dir: dir, logger: logger}
}

// Stage copies r to <Dir>/<uuid>.pdf. name is the client filename and must
// carry an allowed extension; nothing is written when it does not.
func (s *Stager) Stage(ctx context.Context, name string, r io.Reader) (*Staged, error) {
	logger := common.LoggerFrom(ctx, s.logger)
	if !constants.IsAllowedUpload(name) {
		logger.Warn("ingest.rejected", "filename", name)
		return nil, common.NewAppError("UNSUPPORTED_FILE", "only PDF files are accepted", common.ErrInvalidInput)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	path := filepath.Join(s.Dir, id+".pdf")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	h := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(f, h), r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		logger.Error("ingest.write_failed", "path", path, "error", err)
		return nil, fmt.Errorf("write upload: %w", err)
	}

	st := &Staged{
		ID:           id,
		Path:         path,
		OriginalName: name,
		HashHex:      hex.EncodeToString(h.Sum(nil)),
		Size:         n,
	}
	logger.Info("ingest.staged", "id", id, "filename", name, "bytes", n)
	return st, nil
}

// Remove deletes the staged file. A file that is already gone is not an error.
func (s *Stager) Remove(st *Staged) {
	if st == nil {
		return
	}
	if err := os.Remove(st.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("ingest.cleanup_failed", "path", st.Path, "error", err)
	}
}
