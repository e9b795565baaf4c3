package common

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// LogSink is the process logger plus a writer for plain console output.
// When a log file is configured, both the log records and everything written
// to Out land in it, so the file mirrors the console.
type LogSink struct {
	Logger *slog.Logger
	Out    io.Writer
	Path   string
	close  func() error
}

// Close flushes and closes the log file, if any.
func (s *LogSink) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// NewLogSink builds the process logger. When cfg.Dir is set, a timestamped
// log_YYYYMMDD_HHMMSS.txt file is created there. With quiet, log records go
// to the file only, while Out still reaches the console.
func NewLogSink(cfg LogConfig, console io.Writer, quiet bool) (*LogSink, error) {
	if console == nil {
		console = os.Stdout
	}
	sink := &LogSink{Out: console}
	records := console
	if quiet {
		records = io.Discard
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		sink.Path = filepath.Join(cfg.Dir, "log_"+time.Now().Format("20060102_150405")+".txt")
		f, err := os.Create(sink.Path)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		plain := ansiStripper{w: f}
		sink.Out = io.MultiWriter(console, plain)
		records = io.MultiWriter(records, f)
		sink.close = f.Close
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(records, opts)
	} else {
		h = slog.NewTextHandler(records, opts)
	}
	sink.Logger = slog.New(h)
	return sink, nil
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// ansiStripper drops terminal color codes so the log file stays plain text.
type ansiStripper struct {
	w io.Writer
}

func (a ansiStripper) Write(p []byte) (int, error) {
	if _, err := a.w.Write(ansiEscape.ReplaceAll(p, nil)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
