package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/entity"
	"github.com/joseph-ayodele/spec-matcher/internal/export"
	"github.com/joseph-ayodele/spec-matcher/internal/ingest"
	"github.com/joseph-ayodele/spec-matcher/internal/llm"
	"github.com/joseph-ayodele/spec-matcher/internal/pipeline"
	"github.com/joseph-ayodele/spec-matcher/internal/repository"
)

type fakeProcessor struct {
	items     []llm.Item
	err       error
	gotModel  string
	sawStaged bool
}

func (f *fakeProcessor) ProcessPDF(_ context.Context, path, model string) (*pipeline.Result, error) {
	f.gotModel = model
	_, statErr := os.Stat(path)
	f.sawStaged = statErr == nil
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{Items: f.items, Pages: 3, Retained: 2, Batches: 1}, nil
}

type env struct {
	handler   http.Handler
	uploadDir string
	outputDir string
	runs      repository.RunRepository
	proc      *fakeProcessor
}

func newEnv(t *testing.T, proc *fakeProcessor) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()

	db, err := ConnectDB(context.Background(), filepath.Join(root, "runs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	runs := repository.NewRunRepository(db, logger)

	catalogPath := filepath.Join(root, "internal_products.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`[{"category":"Camera","maker":"Sony","model":"FX3","specs":"4K"}]`), 0o644))

	e := &env{
		uploadDir: filepath.Join(root, "uploads"),
		outputDir: filepath.Join(root, "outputs"),
		runs:      runs,
		proc:      proc,
	}
	srv := NewServer(Options{
		Processor:    proc,
		Exporter:     export.NewService(logger),
		Stager:       ingest.NewStager(e.uploadDir, logger),
		Runs:         runs,
		CatalogPath:  catalogPath,
		OutputDir:    e.outputDir,
		DefaultModel: constants.DefaultModel,
	}, logger)
	e.handler = srv.Routes()
	return e
}

func upload(t *testing.T, filename string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4 fake"))
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func serve(e *env, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndCatalogStatus(t *testing.T) {
	e := newEnv(t, &fakeProcessor{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/internal-db/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["loaded"])
	assert.Contains(t, body["preview"], "Maker: Sony | Model: FX3")
}

func TestProcessRejectsNonPDF(t *testing.T) {
	e := newEnv(t, &fakeProcessor{})

	rec := serve(e, upload(t, "spec.docx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["detail"])

	_, err := os.Stat(e.uploadDir)
	assert.True(t, os.IsNotExist(err), "nothing may be written for a rejected upload")
	runs, err := e.runs.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Empty(t, e.proc.gotModel)
}

func TestProcessSuccessWritesSpreadsheet(t *testing.T) {
	proc := &fakeProcessor{items: []llm.Item{
		{"item_number": "1", "name": "카메라", "maker": "Sony", "model": "FX3", "quantity": float64(2), "estimated_krw": float64(5000000)},
	}}
	e := newEnv(t, proc)

	rec := serve(e, upload(t, "Spec.PDF", map[string]string{"model": "qwen3:8b"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)

	assert.Equal(t, true, body["success"])
	assert.Len(t, body["items"], 1)
	assert.Equal(t, "qwen3:8b", proc.gotModel)
	assert.True(t, proc.sawStaged)

	excelPath, ok := body["excel_path"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^/api/download/result_[0-9a-f]{32}\.xlsx$`, excelPath)

	entries, err := os.ReadDir(e.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged upload must be removed")

	dl := serve(e, httptest.NewRequest(http.MethodGet, excelPath, nil))
	assert.Equal(t, http.StatusOK, dl.Code)
	assert.NotZero(t, dl.Body.Len())

	runs, err := e.runs.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, constants.RunStatusOK, runs[0].Status)
	assert.Equal(t, 1, runs[0].ItemCount)

	got := serve(e, httptest.NewRequest(http.MethodGet, "/api/runs/"+runs[0].ID.String(), nil))
	assert.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "Spec.PDF", decode(t, got)["filename"])
}

func TestProcessDefaultsAndNoExcel(t *testing.T) {
	proc := &fakeProcessor{items: []llm.Item{{"name": "A"}}}
	e := newEnv(t, proc)

	rec := serve(e, upload(t, "a.pdf", map[string]string{"save_excel": "false"}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)

	assert.Equal(t, constants.DefaultModel, proc.gotModel)
	assert.Nil(t, body["excel_path"])
	_, err := os.Stat(e.outputDir)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessNoItems(t *testing.T) {
	e := newEnv(t, &fakeProcessor{})

	rec := serve(e, upload(t, "a.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "데이터 추출 실패", body["message"])

	runs, err := e.runs.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, constants.RunStatusEmpty, runs[0].Status)
}

func TestProcessUnreadablePDF(t *testing.T) {
	e := newEnv(t, &fakeProcessor{err: common.NewAppError("PDF_READ", "malformed PDF", common.ErrPDFRead)})

	rec := serve(e, upload(t, "a.pdf", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "malformed PDF")

	entries, err := os.ReadDir(e.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	runs, err := e.runs.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, constants.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
	assert.Equal(t, "malformed PDF", *runs[0].ErrorMessage)
}

func TestProcessOtherFailure(t *testing.T) {
	e := newEnv(t, &fakeProcessor{err: errors.New("context canceled")})

	rec := serve(e, upload(t, "a.pdf", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDownloadRejectsOutsideNames(t *testing.T) {
	e := newEnv(t, &fakeProcessor{})
	require.NoError(t, os.MkdirAll(e.outputDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.outputDir, "notes.txt"), []byte("x"), 0o644))

	for _, p := range []string{
		"/api/download/missing.xlsx",
		"/api/download/notes.txt",
		"/api/download/..%2Fruns.db",
	} {
		rec := serve(e, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
	}
}

func TestRunsEndpoints(t *testing.T) {
	e := newEnv(t, &fakeProcessor{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["runs"])

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/runs/0b7e4c8e-1f11-4b0b-9a43-4b7a0f0b6a11", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexAndCORS(t *testing.T) {
	e := newEnv(t, &fakeProcessor{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/process-pdf")

	req := httptest.NewRequest(http.MethodOptions, "/api/process-pdf", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	rec = serve(e, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:8501", rec.Header().Get("Access-Control-Allow-Origin"))
}

type failingExporter struct{}

func (failingExporter) WriteXLSX(context.Context, []llm.Item, string, export.SavePolicy) error {
	return common.NewAppError("FILE_LOCKED", "result.xlsx", common.ErrFileLocked)
}

func TestProcessExportFailureKeepsItems(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	handler := NewServer(Options{
		Processor:    &fakeProcessor{items: []llm.Item{{"name": "A"}}},
		Exporter:     failingExporter{},
		Stager:       ingest.NewStager(filepath.Join(root, "uploads"), logger),
		OutputDir:    filepath.Join(root, "outputs"),
		DefaultModel: constants.DefaultModel,
	}, logger).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, upload(t, "a.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["excel_path"])
	assert.Len(t, body["items"], 1)
	_, hasRunID := body["run_id"]
	assert.False(t, hasRunID, "run store is disabled")

	runsRec := httptest.NewRecorder()
	handler.ServeHTTP(runsRec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusNotFound, runsRec.Code)
}

type cancelingProcessor struct {
	cancel context.CancelFunc
}

func (p cancelingProcessor) ProcessPDF(ctx context.Context, _, _ string) (*pipeline.Result, error) {
	p.cancel()
	return nil, ctx.Err()
}

func TestProcessClientGoneStillFinishesRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	db, err := ConnectDB(context.Background(), filepath.Join(root, "runs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	runs := repository.NewRunRepository(db, logger)

	req := upload(t, "a.pdf", nil)
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)

	handler := NewServer(Options{
		Processor:    cancelingProcessor{cancel: cancel},
		Exporter:     export.NewService(logger),
		Stager:       ingest.NewStager(filepath.Join(root, "uploads"), logger),
		Runs:         runs,
		OutputDir:    filepath.Join(root, "outputs"),
		DefaultModel: constants.DefaultModel,
	}, logger).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	list, err := runs.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, constants.RunStatusFailed, list[0].Status)
	assert.NotNil(t, list[0].FinishedAt)
}

type startFailingRuns struct {
	repository.RunRepository
}

func (startFailingRuns) Start(context.Context, string, string, string, string) (*entity.Run, error) {
	return nil, common.NewAppError("DB_ERROR", "insert run", common.ErrDatabase)
}

func TestProcessContinuesWhenRunStartFails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	proc := &fakeProcessor{items: []llm.Item{{"name": "A"}}}
	handler := NewServer(Options{
		Processor:    proc,
		Exporter:     export.NewService(logger),
		Stager:       ingest.NewStager(filepath.Join(root, "uploads"), logger),
		Runs:         startFailingRuns{},
		OutputDir:    filepath.Join(root, "outputs"),
		DefaultModel: constants.DefaultModel,
	}, logger).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, upload(t, "a.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["items"], 1)
	assert.NotNil(t, body["excel_path"])
	_, hasRunID := body["run_id"]
	assert.False(t, hasRunID)
	assert.True(t, proc.sawStaged)
}

func TestProcessSaveExcelSpellings(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"yes", true},
		{"on", true},
		{"1", true},
		{"True", true},
		{"no", false},
		{"off", false},
		{"0", false},
		{"FALSE", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			e := newEnv(t, &fakeProcessor{items: []llm.Item{{"name": "A"}}})
			rec := serve(e, upload(t, "a.pdf", map[string]string{"save_excel": tt.value}))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			if tt.want {
				assert.NotNil(t, decode(t, rec)["excel_path"])
			} else {
				assert.Nil(t, decode(t, rec)["excel_path"])
			}
		})
	}

	e := newEnv(t, &fakeProcessor{items: []llm.Item{{"name": "A"}}})
	rec := serve(e, upload(t, "a.pdf", map[string]string{"save_excel": "maybe"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.proc.gotModel)
}

func TestParseFormBool(t *testing.T) {
	for _, v := range []string{"1", "t", "TRUE", "y", "Yes", " on "} {
		b, err := parseFormBool(v)
		require.NoError(t, err, v)
		assert.True(t, b, v)
	}
	for _, v := range []string{"0", "f", "false", "N", "no", "OFF"} {
		b, err := parseFormBool(v)
		require.NoError(t, err, v)
		assert.False(t, b, v)
	}
	_, err := parseFormBool("2")
	assert.Error(t, err)
}
