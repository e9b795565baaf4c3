// Package export writes extracted items to an .xlsx workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/llm"
)

// SheetName is the only sheet in an exported workbook.
const SheetName = "Items"

// Headers are the column labels, in order.
var Headers = []string{
	"물품 번호",
	"품명",
	"제조사(Maker)",
	"모델명(Model)",
	"수량",
	"단가(추정 ₩)",
	"단가(추정 $)",
	"총 금액(₩)",
	"참조 링크",
}

// SavePolicy bounds how long a save waits for a locked destination.
type SavePolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// FailFast makes a single attempt.
var FailFast = SavePolicy{MaxAttempts: 1}

// Service builds and saves item workbooks.
type Service struct {
	logger *slog.Logger
	save   func(f *excelize.File, path string) error
	sleep  func(ctx context.Context, d time.Duration) error
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithSaveFunc replaces the function that persists the workbook. Used by tests.
func WithSaveFunc(fn func(f *excelize.File, path string) error) ServiceOption {
	return func(s *Service) { s.save = fn }
}

// WithSleep replaces the backoff wait. Used by tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) { s.sleep = fn }
}

func NewService(logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger: logger,
		save:   func(f *excelize.File, path string) error { return f.SaveAs(path) },
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build renders items into a new workbook. The caller must Close it.
func (s *Service) Build(items []llm.Item) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	_ = f.SetCellStyle(SheetName, "A1", last, bold)

	for i, r := range BuildRows(items) {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, r.ItemNumber)
		write(2, r.Name)
		write(3, r.Maker)
		write(4, r.Model)
		write(5, r.Quantity)
		write(6, r.UnitKRW)
		write(7, r.UnitUSD)
		write(8, r.TotalKRW)

		cell, _ := excelize.CoordinatesToCellName(9, row)
		if err := f.SetCellFormula(SheetName, cell, strings.TrimPrefix(r.Link, "=")); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("link formula row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 10) // item no
	_ = f.SetColWidth(SheetName, "B", "B", 28) // name
	_ = f.SetColWidth(SheetName, "C", "D", 20) // maker, model
	_ = f.SetColWidth(SheetName, "E", "E", 8)  // qty
	_ = f.SetColWidth(SheetName, "F", "H", 16) // prices
	_ = f.SetColWidth(SheetName, "I", "I", 22) // link
	return f, nil
}

// WriteXLSX builds the workbook and saves it to path. Saves that fail because
// the destination is locked are retried per policy; when attempts run out the
// error wraps common.ErrFileLocked.
func (s *Service) WriteXLSX(ctx context.Context, items []llm.Item, path string, policy SavePolicy) error {
	start := time.Now()
	logger := common.LoggerFrom(ctx, s.logger)

	f, err := s.Build(items)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	attempts := max(policy.MaxAttempts, 1)
	backoff := policy.InitialBackoff
	for attempt := 1; ; attempt++ {
		err = s.save(f, path)
		if err == nil {
			break
		}
		if !isLocked(err) {
			logger.Error("export.xlsx.save_failed", "path", path, "error", err)
			return fmt.Errorf("save xlsx: %w", err)
		}
		if attempt >= attempts {
			logger.Error("export.xlsx.locked", "path", path, "attempts", attempt, "error", err)
			return common.NewAppError("FILE_LOCKED", path, fmt.Errorf("%w: %v", common.ErrFileLocked, err))
		}
		logger.Warn("export.xlsx.retry",
			"path", path,
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			"hint", "close the file if it is open in a spreadsheet app",
		)
		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	logger.Info("export.xlsx.ok",
		"path", path,
		"rows", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
