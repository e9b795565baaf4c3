package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/llm"
)

// BatchOutcome is how a single batch ended.
type BatchOutcome string

const (
	BatchOK      BatchOutcome = "ok"
	BatchSkipped BatchOutcome = "skipped"
	BatchFailed  BatchOutcome = "failed"
)

// BatchReport describes one finished batch.
type BatchReport struct {
	Batch   Batch
	Total   int
	Outcome BatchOutcome
	Items   []llm.Item
	Err     error
}

// runBatch prompts the model for one batch. Short batches are skipped without a
// call. Transport and parse errors are reported, never returned.
func (p *Processor) runBatch(ctx context.Context, logger *slog.Logger, b Batch, total int, model, catalogText string) BatchReport {
	report := BatchReport{Batch: b, Total: total}
	logger = logger.With("batch", b.Index+1, "of", total, "pages", b.Pages)

	if b.TooShort() {
		logger.Info("processor.batch.skipped", "reason", "too little text")
		report.Outcome = BatchSkipped
		return report
	}

	start := time.Now()
	raw, err := p.LLM.Complete(ctx, model, llm.BuildPrompt(catalogText, b.Text))
	if err != nil {
		logger.Error("processor.batch.inference_failed", "err", err)
		report.Outcome, report.Err = BatchFailed, err
		return report
	}

	items, err := llm.ParseItems(raw)
	if err != nil {
		logger.Warn("processor.batch.malformed_output", "err", err, "response_len", len(raw))
		report.Outcome, report.Err = BatchFailed, fmt.Errorf("%w: %w", common.ErrMalformedOutput, err)
		return report
	}

	logger.Info("processor.batch.ok",
		"items", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	report.Outcome, report.Items = BatchOK, items
	return report
}
