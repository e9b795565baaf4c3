package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/pipeline"
	"github.com/joseph-ayodele/spec-matcher/internal/segment"
)

type runOptions struct {
	model   string
	output  string
	verbose bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <pdf_path>",
		Short: "Extract items from a specification PDF into a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPDF(cmd.Context(), root, opts, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Ollama model name (default from config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output .xlsx path (default <input>_ollama.xlsx)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "echo model output and debug logs")
	return cmd
}

// defaultOutput is the input path with its extension replaced by _ollama.xlsx.
func defaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_ollama." + constants.ExportExtension
}

func checkInput(input string) error {
	if _, err := os.Stat(input); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.NewAppError("INPUT_MISSING", "file not found: "+input, common.ErrNotFound)
		}
		return fmt.Errorf("stat input: %w", err)
	}
	return nil
}

func runPDF(ctx context.Context, root *rootOptions, opts *runOptions, input string, out io.Writer) error {
	cfg, sink, err := root.setup(out, opts.verbose, false)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger, out := sink.Logger, sink.Out

	if err := checkInput(input); err != nil {
		logger.Error("cli.input_missing", "path", input, "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := opts.model
	if model == "" {
		model = cfg.LLM.Model
	}
	output := opts.output
	if output == "" {
		output = defaultOutput(input)
	}

	var echo io.Writer
	if opts.verbose {
		echo = out
	}
	var bar *progressbar.ProgressBar
	a := newApp(ctx, cfg, logger, echo,
		pipeline.WithSegmentHook(func(sel segment.Selection, batches int) {
			if sel.Fallback {
				warning(out, "no specification section found; using all %d pages", len(sel.Pages))
			} else {
				info(out, "specification section: %d of %d pages", len(sel.Pages), sel.Total)
			}
			if !opts.verbose && batches > 0 {
				bar = newBatchBar(batches)
			}
		}),
		pipeline.WithBatchHook(func(r pipeline.BatchReport) {
			if bar != nil {
				_ = bar.Add(1)
			}
		}),
	)
	defer a.Close()

	start := time.Now()
	res, err := a.process(ctx, input, output, model)
	if err != nil {
		return err
	}
	if len(res.Items) == 0 {
		warning(out, "no items extracted; nothing to save")
		return nil
	}

	success(out, "%d items saved to %s (%s)", len(res.Items), output, time.Since(start).Round(time.Second))
	if res.Skipped+res.Failed > 0 {
		warning(out, "%d of %d batches produced nothing (%d skipped, %d failed)",
			res.Skipped+res.Failed, res.Batches, res.Skipped, res.Failed)
	}
	if !res.CatalogLoaded {
		warning(out, "internal catalog not loaded; products were deduced externally")
	}
	return nil
}
