package segment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

// Selection is the set of pages handed to batching.
type Selection struct {
	Pages    []Page
	Total    int
	Fallback bool
}

// Select keeps the specification pages. Pages with empty text are ignored.
// When no page qualifies, every non-empty page is returned and Fallback is set.
func Select(pages []Page) Selection {
	var (
		tracker  SectionTracker
		kept     []Page
		nonEmpty []Page
	)
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		nonEmpty = append(nonEmpty, p)
		if tracker.Observe(p) {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return Selection{Pages: nonEmpty, Total: len(pages), Fallback: true}
	}
	return Selection{Pages: kept, Total: len(pages)}
}

// Segmenter couples a Source with page selection.
type Segmenter struct {
	src    Source
	logger *slog.Logger
}

func NewSegmenter(src Source, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{src: src, logger: logger}
}

// Segment extracts pages from path and selects the specification section.
// Extraction failures are returned as ErrPDFRead.
func (s *Segmenter) Segment(ctx context.Context, path string) (Selection, error) {
	logger := common.LoggerFrom(ctx, s.logger)

	pages, err := s.src.Pages(ctx, path)
	if err != nil {
		logger.Error("segment.read_failed", "path", path, "error", err)
		return Selection{}, common.NewAppError("PDF_READ", err.Error(), common.ErrPDFRead)
	}

	sel := Select(pages)
	if sel.Fallback {
		logger.Warn("segment.fallback", "pages", sel.Total, "retained", len(sel.Pages),
			"hint", "no specification markers found, using whole document")
	} else {
		logger.Info("segment.ok", "pages", sel.Total, "retained", len(sel.Pages))
	}
	return sel, nil
}

// NewSource picks the extraction backend named in cfg.
func NewSource(cfg common.PDFConfig, logger *slog.Logger) Source {
	if cfg.Backend == common.BackendPdftotext {
		return NewPdftotextSource(cfg.Pdftotext, ExecRunner{Logger: logger})
	}
	return NewPDFSource(logger)
}
