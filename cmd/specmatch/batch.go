package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/async"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

type batchOptions struct {
	model   string
	outDir  string
	workers int
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Process every PDF in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), root, opts, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Ollama model name (default from config)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "directory for .xlsx files (default next to each PDF)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 1, "PDFs processed concurrently")
	return cmd
}

// listPDFs returns the PDFs directly inside dir, sorted by name.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewAppError("INPUT_MISSING", "read dir "+dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !constants.IsAllowedUpload(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func batchOutput(input, outDir string) string {
	out := defaultOutput(input)
	if outDir == "" {
		return out
	}
	return filepath.Join(outDir, filepath.Base(out))
}

type batchTally struct {
	mu     sync.Mutex
	ok     int
	empty  int
	failed []string
}

func runBatch(ctx context.Context, root *rootOptions, opts *batchOptions, dir string, out io.Writer) error {
	cfg, sink, err := root.setup(out, false, false)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger, out := sink.Logger, sink.Out

	paths, err := listPDFs(dir)
	if err != nil {
		logger.Error("cli.batch.dir_unreadable", "dir", dir, "error", err)
		return err
	}
	if len(paths) == 0 {
		warning(out, "no PDF files in %s", dir)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := opts.model
	if model == "" {
		model = cfg.LLM.Model
	}

	a := newApp(ctx, cfg, logger, nil)
	defer a.Close()

	tally := &batchTally{}
	bar := newBatchBar(len(paths))
	bar.Describe("files")

	q := async.NewQueue(ctx, func(ctx context.Context, job async.Job) error {
		res, err := a.process(ctx, job.Path, job.Output, job.Model)
		if err != nil {
			return err
		}
		tally.mu.Lock()
		defer tally.mu.Unlock()
		if len(res.Items) == 0 {
			tally.empty++
		} else {
			tally.ok++
		}
		return nil
	}, logger,
		async.WithWorkers(opts.workers),
		async.WithDoneHook(func(job async.Job, err error) {
			if err != nil {
				tally.mu.Lock()
				tally.failed = append(tally.failed, fmt.Sprintf("%s: %v", filepath.Base(job.Path), err))
				tally.mu.Unlock()
			}
			_ = bar.Add(1)
		}),
	)

	for _, p := range paths {
		if err := q.Enqueue(ctx, async.Job{Path: p, Output: batchOutput(p, opts.outDir), Model: model}); err != nil {
			break
		}
	}
	if err := q.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	success(out, "%d of %d files exported", tally.ok, len(paths))
	if tally.empty > 0 {
		warning(out, "%d files produced no items", tally.empty)
	}
	for _, f := range tally.failed {
		warning(out, "failed %s", f)
	}
	if len(tally.failed) > 0 {
		return common.NewAppError("BATCH_FAILED", fmt.Sprintf("%d of %d files failed", len(tally.failed), len(paths)), common.ErrInternal)
	}
	return ctx.Err()
}
