package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/catalog"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

const fileMissing = "파일 없음"

// download handles GET /api/download/{filename}. Only plain .xlsx names inside
// the output dir are served.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		constants.NormalizeExt(filepath.Ext(name)) != constants.ExportExtension {
		writeDetail(w, http.StatusNotFound, fileMissing)
		return
	}

	path := filepath.Join(s.opts.OutputDir, name)
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			common.LoggerFrom(r.Context(), s.logger).Warn("download.stat_failed", "file", name, "error", err)
		}
		writeDetail(w, http.StatusNotFound, fileMissing)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// catalogStatus handles GET /api/internal-db/status.
func (s *Server) catalogStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Status(s.opts.CatalogPath, common.LoggerFrom(r.Context(), s.logger)))
}
