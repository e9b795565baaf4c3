// Package pipeline runs a PDF through segmentation, batched inference and
// response normalization.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/catalog"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/llm"
	"github.com/joseph-ayodele/spec-matcher/internal/segment"
)

// Result summarizes one processed document.
type Result struct {
	Items         []llm.Item
	Pages         int
	Retained      int
	Fallback      bool
	CatalogLoaded bool
	Batches       int
	Skipped       int
	Failed        int
}

// Processor coordinates catalog load, segmentation, then one inference call per batch.
type Processor struct {
	Logger      *slog.Logger
	Segmenter   *segment.Segmenter
	LLM         llm.Completer
	CatalogPath string

	batchSize  int
	onBatch    func(BatchReport)
	onSegments func(segment.Selection, int)
}

// Option customizes a Processor.
type Option func(*Processor)

// WithBatchSize overrides constants.BatchSize.
func WithBatchSize(n int) Option {
	return func(p *Processor) { p.batchSize = n }
}

// WithBatchHook is called after every batch, in order.
func WithBatchHook(fn func(BatchReport)) Option {
	return func(p *Processor) { p.onBatch = fn }
}

// WithSegmentHook is called once pages are selected, with the number of batches to come.
func WithSegmentHook(fn func(sel segment.Selection, batches int)) Option {
	return func(p *Processor) { p.onSegments = fn }
}

func NewProcessor(logger *slog.Logger, seg *segment.Segmenter, completer llm.Completer, catalogPath string, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		Logger:      logger,
		Segmenter:   seg,
		LLM:         completer,
		CatalogPath: catalogPath,
		batchSize:   constants.BatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessPDF extracts items from the PDF at path using model. Only an
// unreadable PDF or a cancelled context fails the call; batch-level problems
// are counted in the Result and logged.
func (p *Processor) ProcessPDF(ctx context.Context, path, model string) (*Result, error) {
	logger := common.LoggerFrom(ctx, p.Logger)
	start := time.Now()

	cat := catalog.Load(p.CatalogPath, logger)
	catalogText := cat.Render()

	sel, err := p.Segmenter.Segment(ctx, path)
	if err != nil {
		logger.Error("processor.segment.failed", "path", path, "err", err)
		return nil, err
	}

	batches := MakeBatches(sel.Pages, p.batchSize)
	res := &Result{
		Pages:         sel.Total,
		Retained:      len(sel.Pages),
		Fallback:      sel.Fallback,
		CatalogLoaded: cat.Loaded(),
		Batches:       len(batches),
	}
	if p.onSegments != nil {
		p.onSegments(sel, len(batches))
	}
	logger.Info("processor.segment.ok",
		"pages", res.Pages,
		"retained", res.Retained,
		"fallback", res.Fallback,
		"batches", res.Batches,
		"catalog_loaded", res.CatalogLoaded,
	)

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report := p.runBatch(ctx, logger, b, len(batches), model, catalogText)
		switch report.Outcome {
		case BatchSkipped:
			res.Skipped++
		case BatchFailed:
			res.Failed++
		}
		res.Items = append(res.Items, report.Items...)
		if p.onBatch != nil {
			p.onBatch(report)
		}
	}

	logger.Info("processor.done",
		"model", model,
		"items", len(res.Items),
		"batches", res.Batches,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
