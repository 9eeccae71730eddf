package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus represents the status of an ingest job
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IngestMode selects whether an ingest replaces the served index or grows it.
type IngestMode string

const (
	IngestModeReplace IngestMode = "replace"
	IngestModeAppend  IngestMode = "append"
)

// IngestStats summarises a finished ingestion.
type IngestStats struct {
	Documents  int   `json:"documents"`
	Chunks     int   `json:"chunks"`
	IndexSize  int   `json:"index_size"`
	DurationMS int64 `json:"duration_ms"`
}

// IngestJob represents an asynchronous ingestion request. When Documents is
// empty the configured document directory is ingested.
type IngestJob struct {
	ID          string
	Mode        IngestMode
	Documents   []Document
	Status      IngestJobStatus
	Retries     int32
	Error       string
	Stats       *IngestStats
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewIngestJob creates a new pending IngestJob
func NewIngestJob(id string, mode IngestMode, docs []Document, createdAt time.Time) *IngestJob {
	if mode == "" {
		mode = IngestModeReplace
	}
	return &IngestJob{
		ID:        id,
		Mode:      mode,
		Documents: docs,
		Status:    IngestJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return fmt.Errorf("ingest job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("ingest job ID is required")
	}

	if !IsValidIngestMode(j.Mode) {
		return fmt.Errorf("ingest job Mode is invalid: %s", j.Mode)
	}

	if !isValidIngestJobStatus(j.Status) {
		return fmt.Errorf("ingest job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("ingest job Retries cannot be negative")
	}

	for i := range j.Documents {
		if err := ValidateDocument(&j.Documents[i]); err != nil {
			return fmt.Errorf("ingest job document %d: %w", i, err)
		}
	}

	return nil
}

// IsValidIngestMode reports whether m is a known ingest mode.
func IsValidIngestMode(m IngestMode) bool {
	return m == IngestModeReplace || m == IngestModeAppend
}

func isValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing,
		IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
