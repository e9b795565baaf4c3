package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/entity"
	"github.com/joseph-ayodele/spec-matcher/internal/export"
	"github.com/joseph-ayodele/spec-matcher/internal/ingest"
	"github.com/joseph-ayodele/spec-matcher/internal/llm"
	"github.com/joseph-ayodele/spec-matcher/internal/pipeline"
	"github.com/joseph-ayodele/spec-matcher/internal/repository"
	"github.com/joseph-ayodele/spec-matcher/internal/segment"
	"github.com/joseph-ayodele/spec-matcher/internal/server"
)

// app holds what the run and batch commands share for processing one file.
type app struct {
	cfg       *common.Config
	logger    *slog.Logger
	processor *pipeline.Processor
	exporter  *export.Service
	runs      repository.RunRepository
	closeRuns func()
}

// modelFactory overrides how Ollama models are created. Nil uses the real client.
var modelFactory llm.ModelFactory

// newApp wires the pipeline from cfg. echo, when set, receives the model stream.
func newApp(ctx context.Context, cfg *common.Config, logger *slog.Logger, echo io.Writer, opts ...pipeline.Option) *app {
	var clientOpts []llm.ClientOption
	if echo != nil {
		clientOpts = append(clientOpts, llm.WithEcho(echo))
	}
	if modelFactory != nil {
		clientOpts = append(clientOpts, llm.WithModelFactory(modelFactory))
	}
	client := llm.NewOllamaClient(llm.OllamaConfig{
		ServerURL:   cfg.LLM.ServerURL,
		Temperature: cfg.LLM.Temperature,
		NumCtx:      cfg.LLM.NumCtx,
	}, logger, clientOpts...)

	a := &app{
		cfg:    cfg,
		logger: logger,
		processor: pipeline.NewProcessor(
			logger,
			segment.NewSegmenter(segment.NewSource(cfg.PDF, logger), logger),
			client,
			cfg.Paths.CatalogPath,
			opts...,
		),
		exporter:  export.NewService(logger),
		closeRuns: func() {},
	}
	a.openRunStore(ctx)
	return a
}

func (a *app) Close() { a.closeRuns() }

func (a *app) savePolicy() export.SavePolicy {
	return export.SavePolicy{
		MaxAttempts:    a.cfg.Export.MaxAttempts,
		InitialBackoff: a.cfg.Export.Backoff,
		MaxBackoff:     a.cfg.Export.MaxBackoff,
	}
}

// process runs one PDF and writes output when items were found. An empty result
// is not an error.
func (a *app) process(ctx context.Context, input, output, model string) (*pipeline.Result, error) {
	runID := a.startRun(ctx, input, model)
	if runID != uuid.Nil {
		ctx = common.WithRunID(ctx, runID.String())
	}

	res, err := a.processor.ProcessPDF(ctx, input, model)
	if err != nil {
		a.finishRun(ctx, runID, failedOutcome(err))
		return nil, err
	}

	outcome := entity.RunOutcome{
		PageCount:      res.Pages,
		RetainedPages:  res.Retained,
		Fallback:       res.Fallback,
		Batches:        res.Batches,
		SkippedBatches: res.Skipped,
		FailedBatches:  res.Failed,
		ItemCount:      len(res.Items),
	}
	if len(res.Items) == 0 {
		outcome.Status = constants.RunStatusEmpty
		a.finishRun(ctx, runID, outcome)
		return res, nil
	}

	if err := a.exporter.WriteXLSX(ctx, res.Items, output, a.savePolicy()); err != nil {
		a.finishRun(ctx, runID, failedOutcome(err))
		return nil, err
	}
	outcome.Status = constants.RunStatusOK
	outcome.ExcelFile = output
	a.finishRun(ctx, runID, outcome)
	return res, nil
}

// openRunStore opens the run history when configured. Failure only disables it.
func (a *app) openRunStore(ctx context.Context) {
	path := a.cfg.Storage.RunsDBPath
	if path == "" {
		return
	}
	db, err := server.ConnectDB(ctx, path, a.logger)
	if err != nil {
		a.logger.Warn("cli.runs.unavailable", "path", path, "error", err)
		return
	}
	a.runs = repository.NewRunRepository(db, a.logger)
	a.closeRuns = func() { repository.Close(db, a.logger) }
}

func (a *app) startRun(ctx context.Context, input, model string) uuid.UUID {
	if a.runs == nil {
		return uuid.Nil
	}
	hash, err := ingest.HashFile(input)
	if err != nil {
		a.logger.Warn("cli.hash_failed", "path", input, "error", err)
	}
	run, err := a.runs.Start(ctx, filepath.Base(input), model, "cli", hash)
	if err != nil {
		a.logger.Warn("cli.run.start_failed", "error", err)
		return uuid.Nil
	}
	return run.ID
}

func (a *app) finishRun(ctx context.Context, id uuid.UUID, out entity.RunOutcome) {
	if a.runs == nil || id == uuid.Nil {
		return
	}
	// the signal context may already be done; the record should still land
	if err := a.runs.Finish(context.WithoutCancel(ctx), id, out); err != nil {
		a.logger.Warn("cli.run.finish_failed", "run_id", id, "error", err)
	}
}

func failedOutcome(err error) entity.RunOutcome {
	return entity.RunOutcome{Status: constants.RunStatusFailed, ErrorMessage: err.Error()}
}
