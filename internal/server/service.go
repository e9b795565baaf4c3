// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/spec-matcher/internal/export"
	"github.com/joseph-ayodele/spec-matcher/internal/ingest"
	"github.com/joseph-ayodele/spec-matcher/internal/llm"
	"github.com/joseph-ayodele/spec-matcher/internal/pipeline"
	"github.com/joseph-ayodele/spec-matcher/internal/repository"
)

//go:embed web
var webFS embed.FS

// PDFProcessor runs one PDF through the pipeline.
type PDFProcessor interface {
	ProcessPDF(ctx context.Context, path, model string) (*pipeline.Result, error)
}

// Exporter writes items to a spreadsheet.
type Exporter interface {
	WriteXLSX(ctx context.Context, items []llm.Item, path string, policy export.SavePolicy) error
}

// Options wires the Server.
type Options struct {
	Processor      PDFProcessor
	Exporter       Exporter
	Stager         *ingest.Stager
	Runs           repository.RunRepository
	CatalogPath    string
	OutputDir      string
	DefaultModel   string
	MaxUploadBytes int64
	SavePolicy     export.SavePolicy
}

type Server struct {
	opts   Options
	logger *slog.Logger
}

func NewServer(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if opts.SavePolicy.MaxAttempts <= 0 {
		opts.SavePolicy = export.FailFast
	}
	return &Server{opts: opts, logger: logger}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors([]string{"*"}))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/internal-db/status", s.catalogStatus)
		r.Post("/process-pdf", s.processPDF)
		r.Get("/download/{filename}", s.download)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
	})

	static, _ := fs.Sub(webFS, "web")
	r.Handle("/*", http.FileServer(http.FS(static)))
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
