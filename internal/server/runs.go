package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/entity"
)

const runHistoryDisabled = "run history is disabled"

func parseRunID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, common.NewAppError("RUN_NOT_FOUND", s, common.ErrNotFound)
	}
	return id, nil
}

// listRuns handles GET /api/runs?limit=N.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		writeDetail(w, http.StatusNotFound, runHistoryDisabled)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.opts.Runs.List(r.Context(), limit)
	if err != nil {
		writeDetail(w, common.HTTPStatus(err), err.Error())
		return
	}
	if runs == nil {
		runs = []*entity.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// getRun handles GET /api/runs/{id}.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		writeDetail(w, http.StatusNotFound, runHistoryDisabled)
		return
	}
	id, err := parseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.opts.Runs.Get(r.Context(), id)
	if err != nil {
		status := common.HTTPStatus(err)
		detail := err.Error()
		if status == http.StatusNotFound {
			detail = "run not found"
		}
		writeDetail(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
