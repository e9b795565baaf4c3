package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/entity"
	"github.com/joseph-ayodele/spec-matcher/internal/llm"
	"github.com/joseph-ayodele/spec-matcher/internal/pipeline"
)

const extractionFailedMessage = "데이터 추출 실패"

type processResponse struct {
	Success   bool       `json:"success"`
	Items     []llm.Item `json:"items,omitempty"`
	ExcelPath *string    `json:"excel_path"`
	RunID     string     `json:"run_id,omitempty"`
}

// processPDF handles POST /api/process-pdf.
func (s *Server) processPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := common.LoggerFrom(ctx, s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "multipart form required: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !constants.IsAllowedUpload(header.Filename) {
		logger.Warn("process.rejected", "filename", header.Filename)
		writeDetail(w, http.StatusBadRequest, "PDF 파일만 가능합니다.")
		return
	}

	model := strings.TrimSpace(r.FormValue("model"))
	if model == "" {
		model = s.opts.DefaultModel
	}
	saveExcel := true
	if v := strings.TrimSpace(r.FormValue("save_excel")); v != "" {
		b, err := parseFormBool(v)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "save_excel must be a boolean")
			return
		}
		saveExcel = b
	}

	staged, err := s.opts.Stager.Stage(ctx, header.Filename, file)
	if err != nil {
		writeDetail(w, common.HTTPStatus(err), err.Error())
		return
	}
	defer s.opts.Stager.Remove(staged)

	runID := uuid.Nil
	if s.opts.Runs != nil {
		run, err := s.opts.Runs.Start(ctx, header.Filename, model, "api", staged.HashHex)
		if err != nil {
			logger.Warn("run.start_failed", "filename", header.Filename, "error", err)
		} else {
			runID = run.ID
			ctx = common.WithRunID(ctx, runID.String())
			logger = common.LoggerFrom(ctx, s.logger)
		}
	}

	res, err := s.opts.Processor.ProcessPDF(ctx, staged.Path, model)
	if err != nil {
		s.finish(r, runID, failedOutcome(err))
		logger.Error("process.failed", "filename", header.Filename, "error", err)
		writeDetail(w, common.HTTPStatus(err), err.Error())
		return
	}

	out := outcomeFrom(res)
	resp := processResponse{}
	if runID != uuid.Nil {
		resp.RunID = runID.String()
	}
	if len(res.Items) == 0 {
		out.Status = constants.RunStatusEmpty
		s.finish(r, runID, out)
		empty := map[string]any{"success": false, "message": extractionFailedMessage}
		if resp.RunID != "" {
			empty["run_id"] = resp.RunID
		}
		writeJSON(w, http.StatusOK, empty)
		return
	}

	if saveExcel {
		name := "result_" + staged.ID + "." + constants.ExportExtension
		if err := s.opts.Exporter.WriteXLSX(ctx, res.Items, filepath.Join(s.opts.OutputDir, name), s.opts.SavePolicy); err != nil {
			logger.Error("process.export_failed", "file", name, "error", err)
		} else {
			url := "/api/download/" + name
			resp.ExcelPath = &url
			out.ExcelFile = name
		}
	}

	out.Status = constants.RunStatusOK
	s.finish(r, runID, out)
	resp.Success = true
	resp.Items = res.Items
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) finish(r *http.Request, id uuid.UUID, out entity.RunOutcome) {
	if s.opts.Runs == nil || id == uuid.Nil {
		return
	}
	// a client that went away must not leave the run RUNNING
	if err := s.opts.Runs.Finish(context.WithoutCancel(r.Context()), id, out); err != nil {
		common.LoggerFrom(r.Context(), s.logger).Error("run.finish_failed", "run_id", id, "error", err)
	}
}

// parseFormBool accepts the spellings HTML forms and Python clients send.
func parseFormBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

func outcomeFrom(res *pipeline.Result) entity.RunOutcome {
	return entity.RunOutcome{
		PageCount:      res.Pages,
		RetainedPages:  res.Retained,
		Fallback:       res.Fallback,
		Batches:        res.Batches,
		SkippedBatches: res.Skipped,
		FailedBatches:  res.Failed,
		ItemCount:      len(res.Items),
	}
}

func failedOutcome(err error) entity.RunOutcome {
	msg := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return entity.RunOutcome{Status: constants.RunStatusFailed, ErrorMessage: msg}
}
