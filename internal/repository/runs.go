package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/common"
	"github.com/joseph-ayodele/spec-matcher/internal/entity"
)

type RunRepository interface {
	Start(ctx context.Context, filename, model, source, contentHash string) (*entity.Run, error)
	Finish(ctx context.Context, id uuid.UUID, out entity.RunOutcome) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Run, error)
	List(ctx context.Context, limit int) ([]*entity.Run, error)
}

type runRepo struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

func NewRunRepository(db *sql.DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (r *runRepo) Start(ctx context.Context, filename, model, source, contentHash string) (*entity.Run, error) {
	run := &entity.Run{
		ID:          uuid.New(),
		Filename:    filename,
		Model:       model,
		Source:      source,
		ContentHash: contentHash,
		Status:      constants.RunStatusRunning,
		StartedAt:   r.now(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, filename, model, source, content_hash, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Filename, run.Model, run.Source, run.ContentHash, string(run.Status), run.StartedAt)
	if err != nil {
		r.log.Error("run start failed", "filename", filename, "err", err)
		return nil, common.NewAppError("DB_ERROR", "insert run", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	r.log.Info("run started", "run_id", run.ID, "filename", filename, "model", model, "source", source)
	return run, nil
}

func (r *runRepo) Finish(ctx context.Context, id uuid.UUID, out entity.RunOutcome) error {
	if !out.Status.IsTerminal() {
		return common.NewAppError("INVALID_STATUS", "finish with non-terminal status "+string(out.Status), common.ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, page_count = ?, retained_pages = ?, fallback = ?, batches = ?,
		        skipped_batches = ?, failed_batches = ?, item_count = ?, excel_file = ?, error_message = ?,
		        finished_at = ?
		 WHERE id = ?`,
		string(out.Status), out.PageCount, out.RetainedPages, out.Fallback, out.Batches,
		out.SkippedBatches, out.FailedBatches, out.ItemCount, nullable(out.ExcelFile), nullable(out.ErrorMessage),
		r.now(), id.String())
	if err != nil {
		r.log.Error("run finish failed", "run_id", id, "err", err)
		return common.NewAppError("DB_ERROR", "update run", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("RUN_NOT_FOUND", id.String(), common.ErrNotFound)
	}
	if out.Status == constants.RunStatusFailed {
		r.log.Warn("run finished", "run_id", id, "status", out.Status, "error", out.ErrorMessage)
	} else {
		r.log.Info("run finished", "run_id", id, "status", out.Status, "items", out.ItemCount)
	}
	return nil
}

const selectRun = `SELECT id, filename, model, source, content_hash, status, page_count, retained_pages,
       fallback, batches, skipped_batches, failed_batches, item_count, excel_file, error_message,
       started_at, finished_at
  FROM runs`

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	row := r.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("RUN_NOT_FOUND", id.String(), common.ErrNotFound)
	}
	if err != nil {
		r.log.Error("run get failed", "run_id", id, "err", err)
		return nil, common.NewAppError("DB_ERROR", "get run", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	return run, nil
}

func (r *runRepo) List(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		r.log.Error("run list failed", "err", err)
		return nil, common.NewAppError("DB_ERROR", "list runs", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan run", fmt.Errorf("%w: %v", common.ErrDatabase, err))
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate runs", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*entity.Run, error) {
	var (
		run        entity.Run
		id, status string
		excel, msg sql.NullString
		finished   sql.NullTime
	)
	err := s.Scan(&id, &run.Filename, &run.Model, &run.Source, &run.ContentHash, &status,
		&run.PageCount, &run.RetainedPages, &run.Fallback, &run.Batches, &run.SkippedBatches,
		&run.FailedBatches, &run.ItemCount, &excel, &msg, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	run.ID = parsed
	run.Status = constants.RunStatus(status)
	if excel.Valid {
		run.ExcelFile = &excel.String
	}
	if msg.Valid {
		run.ErrorMessage = &msg.String
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
