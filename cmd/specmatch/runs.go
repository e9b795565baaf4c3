package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/repository"
	"github.com/joseph-ayodele/spec-matcher/internal/server"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Check the run store and list recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listRuns(cmd.Context(), root, limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func listRuns(ctx context.Context, root *rootOptions, limit int, out io.Writer) error {
	cfg, sink, err := root.setup(out, false, true)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger, out := sink.Logger, sink.Out

	if cfg.Storage.RunsDBPath == "" {
		return common.NewAppError("RUNS_DISABLED", "run history is disabled (RUNS_DB_PATH is empty)", common.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := server.ConnectDB(ctx, cfg.Storage.RunsDBPath, logger)
	if err != nil {
		return fmt.Errorf("run store health: %w", err)
	}
	defer repository.Close(db, logger)
	success(out, "run store OK (%s)", cfg.Storage.RunsDBPath)

	runs, err := repository.NewRunRepository(db, logger).List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		info(out, "no runs recorded yet")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Started", "Status", "Items", "Pages", "Batches", "Model", "File"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	for _, r := range runs {
		table.Append([]string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(r.Status),
			strconv.Itoa(r.ItemCount),
			fmt.Sprintf("%d/%d", r.RetainedPages, r.PageCount),
			strconv.Itoa(r.Batches),
			r.Model,
			r.Filename,
		})
	}
	table.Render()
	return nil
}
