package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

type rootOptions struct {
	cfgFile string
	noColor bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "specmatch",
		Short: "Match procurement specification PDFs to concrete products",
		Long: `specmatch reads the commodity-specification pages of a procurement PDF,
asks a local Ollama model to identify each requested item (preferring products
from the internal catalog), and writes the result to a spreadsheet with prices
and purchase links.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "YAML config file (default $CONFIG_PATH)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newPagesCmd(opts),
		newRunsCmd(opts),
		newBatchCmd(opts),
	)
	return cmd
}

// setup loads config and builds the process log sink. Console output written
// through sink.Out is mirrored into the log file. With quiet, log records stay
// out of the console.
func (o *rootOptions) setup(console io.Writer, verbose, quiet bool) (*common.Config, *common.LogSink, error) {
	if o.noColor {
		disableColor()
	}
	cfg, err := common.LoadConfig(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if console == nil {
		console = os.Stdout
	}
	sink, err := common.NewLogSink(cfg.Log, console, quiet)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(sink.Logger)
	if sink.Path != "" {
		sink.Logger.Debug("log file", "path", sink.Path)
	}
	return cfg, sink, nil
}
