package server

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	repo "github.com/joseph-ayodele/spec-matcher/internal/repository"
)

// ConnectDB opens the run store at path and verifies it answers a ping.
func ConnectDB(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := repo.Open(ctx, repo.Config{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    8,
		ConnMaxIdleTime: 5 * time.Minute,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := repo.HealthCheck(ctx, db, 3*time.Second, logger); err != nil {
		repo.Close(db, logger)
		return nil, err
	}
	return db, nil
}
