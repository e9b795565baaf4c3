package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/spec-matcher/constants"
)

// Run records one pass of a PDF through the pipeline, from the API or the CLI.
type Run struct {
	ID             uuid.UUID           `json:"id"`
	Filename       string              `json:"filename"`
	Model          string              `json:"model"`
	Source         string              `json:"source"` // api or cli
	ContentHash    string              `json:"content_hash,omitempty"`
	Status         constants.RunStatus `json:"status"`
	PageCount      int                 `json:"page_count"`
	RetainedPages  int                 `json:"retained_pages"`
	Fallback       bool                `json:"fallback"`
	Batches        int                 `json:"batches"`
	SkippedBatches int                 `json:"skipped_batches"`
	FailedBatches  int                 `json:"failed_batches"`
	ItemCount      int                 `json:"item_count"`
	ExcelFile      *string             `json:"excel_file,omitempty"`
	ErrorMessage   *string             `json:"error_message,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
}

// RunOutcome is what a finished run reports back to the store.
type RunOutcome struct {
	Status         constants.RunStatus
	PageCount      int
	RetainedPages  int
	Fallback       bool
	Batches        int
	SkippedBatches int
	FailedBatches  int
	ItemCount      int
	ExcelFile      string
	ErrorMessage   string
}
