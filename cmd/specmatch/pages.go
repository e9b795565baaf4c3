package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/spec-matcher/internal/segment"
)

// newPagesCmd shows which pages the segmenter would send to the model, without
// calling it. Useful when tuning the section markers against a new document.
func newPagesCmd(root *rootOptions) *cobra.Command {
	var showText bool
	cmd := &cobra.Command{
		Use:   "pages <pdf_path>",
		Short: "List the pages selected as the specification section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPages(cmd.Context(), root, args[0], showText, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&showText, "text", false, "print the extracted text of each selected page")
	return cmd
}

func listPages(ctx context.Context, root *rootOptions, input string, showText bool, out io.Writer) error {
	cfg, sink, err := root.setup(out, false, true)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger, out := sink.Logger, sink.Out

	seg := segment.NewSegmenter(segment.NewSource(cfg.PDF, logger), logger)
	sel, err := seg.Segment(ctx, input)
	if err != nil {
		return err
	}

	if sel.Fallback {
		warning(out, "no specification section detected; all %d non-empty pages would be used", len(sel.Pages))
	} else {
		info(out, "%d of %d pages selected (backend %s)", len(sel.Pages), sel.Total, cfg.PDF.Backend)
	}
	for _, p := range sel.Pages {
		table := ""
		if p.HasTable {
			table = " [table]"
		}
		headColor.Fprintf(out, "page %d%s\n", p.Number, table)
		if showText {
			fmt.Fprintln(out, p.Text)
		}
	}
	return nil
}
