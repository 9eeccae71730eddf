package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3
)

// IngestJobRepository defines the interface for ingest job persistence
type IngestJobRepository interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)

	// GetPendingJobs retrieves and claims pending ingest jobs
	GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error)

	CompleteJob(ctx context.Context, jobID string, stats *domain.IngestStats) error

	// RecordFailure counts a failed attempt and moves the job to status
	// (pending to retry, failed to give up) in one step.
	RecordFailure(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error
}

// IngestRunner runs one ingestion.
type IngestRunner interface {
	Ingest(ctx context.Context, mode domain.IngestMode, docs []domain.Document) (*domain.IngestStats, error)
}

// IngestWorker processes queued ingest jobs
type IngestWorker struct {
	repo   IngestJobRepository
	runner IngestRunner
	logger *slog.Logger
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(repo IngestJobRepository, runner IngestRunner, logger *slog.Logger) *IngestWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestWorker{repo: repo, runner: runner, logger: logger}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info("processing pending ingest jobs", "count", len(jobs))

	// Jobs run one at a time so that publishes are applied in submission order.
	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("error processing job", "job_id", job.ID, "error", err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestWorker.processJob", telemetry.SpanAttributes{
		Operation: "ingest_job",
		JobID:     job.ID,
	})
	defer span.End()

	w.logger.Info("processing ingest job", "job_id", job.ID, "mode", job.Mode, "documents", len(job.Documents))

	stats, err := w.runner.Ingest(ctx, job.Mode, job.Documents)
	if err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.CompleteJob(ctx, job.ID, stats); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	w.logger.Info("ingest job completed", "job_id", job.ID, "chunks", stats.Chunks, "index_size", stats.IndexSize)
	return nil
}

// handleJobFailure handles a failed job with retry logic. Errors caused by
// the job's own input are not retried.
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	w.logger.Warn("ingest job failed", "job_id", job.ID, "error", jobErr)

	if isPermanent(jobErr) || job.Retries+1 >= MaxRetries {
		w.logger.Error("ingest job marked as failed", "job_id", job.ID, "attempts", job.Retries+1)
		telemetry.CaptureError(ctx, jobErr)
		errMsg := jobErr.Error()
		if !isPermanent(jobErr) {
			errMsg = fmt.Sprintf("max retries exceeded: %v", jobErr)
		}
		if err := w.repo.RecordFailure(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	w.logger.Info("ingest job will be retried", "job_id", job.ID, "attempt", job.Retries+1, "max", MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.RecordFailure(ctx, job.ID, domain.IngestJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidParameter) ||
		errors.Is(err, domain.ErrChunking) ||
		errors.Is(err, domain.ErrDimensionMismatch) ||
		errors.Is(err, domain.ErrDocumentLoad)
}
