package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/spec-matcher/internal/export"
	"github.com/joseph-ayodele/spec-matcher/internal/ingest"
	"github.com/joseph-ayodele/spec-matcher/internal/llm"
	"github.com/joseph-ayodele/spec-matcher/internal/pipeline"
	"github.com/joseph-ayodele/spec-matcher/internal/repository"
	"github.com/joseph-ayodele/spec-matcher/internal/segment"
	"github.com/joseph-ayodele/spec-matcher/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), root, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func serve(ctx context.Context, root *rootOptions, addr string) error {
	cfg, sink, err := root.setup(os.Stdout, false, false)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger := sink.Logger
	if addr != "" {
		cfg.Server.Addr = addr
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Processor: pipeline.NewProcessor(
			logger,
			segment.NewSegmenter(segment.NewSource(cfg.PDF, logger), logger),
			llm.NewOllamaClient(llm.OllamaConfig{
				ServerURL:   cfg.LLM.ServerURL,
				Temperature: cfg.LLM.Temperature,
				NumCtx:      cfg.LLM.NumCtx,
			}, logger),
			cfg.Paths.CatalogPath,
		),
		Exporter:       export.NewService(logger),
		Stager:         ingest.NewStager(cfg.Paths.UploadDir, logger),
		CatalogPath:    cfg.Paths.CatalogPath,
		OutputDir:      cfg.Paths.OutputDir,
		DefaultModel:   cfg.LLM.Model,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		SavePolicy:     export.FailFast,
	}
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		return err
	}

	if cfg.Storage.RunsDBPath != "" {
		db, err := server.ConnectDB(ctx, cfg.Storage.RunsDBPath, logger)
		if err != nil {
			return err
		}
		defer repository.Close(db, logger)
		opts.Runs = repository.NewRunRepository(db, logger)
	} else {
		logger.Info("serve.runs.disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewServer(opts, logger).Routes(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serve.listening", "addr", cfg.Server.Addr, "model", cfg.LLM.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("serve.failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("serve.shutdown", "grace", cfg.Server.GracefulShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("serve.shutdown_failed", "error", err)
		return err
	}
	logger.Info("serve.stopped")
	return nil
}
