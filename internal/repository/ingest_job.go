package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

const ingestJobColumns = `id, mode, documents, status, retries, error, stats, created_at, processed_at`

// IngestJobRepository persists ingest jobs so they survive restarts when
// the postgres backend is used.
type IngestJobRepository struct {
	db     dbtx
	runner *TxRunner
}

func NewIngestJobRepository(pool *pgxpool.Pool) *IngestJobRepository {
	return &IngestJobRepository{db: pool, runner: NewTxRunner(pool)}
}

func NewIngestJobRepositoryWithTx(tx pgx.Tx) *IngestJobRepository {
	return &IngestJobRepository{db: tx}
}

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	docs := job.Documents
	if docs == nil {
		docs = []domain.Document{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingest_jobs (id, mode, documents, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.Mode, docs, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	job, err := scanIngestJob(r.db.QueryRow(ctx,
		`SELECT `+ingestJobColumns+` FROM ingest_jobs WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIngestJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending marks up to limit pending jobs as processing and returns
// them, oldest first. Concurrent workers never claim the same job.
func (r *IngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM ingest_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE ingest_jobs
		 SET status = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE ingest_jobs.id = cte.id
		 RETURNING ingest_jobs.id, ingest_jobs.mode, ingest_jobs.documents, ingest_jobs.status,
		           ingest_jobs.retries, ingest_jobs.error, ingest_jobs.stats,
		           ingest_jobs.created_at, ingest_jobs.processed_at`,
		domain.IngestJobStatusPending, limit, domain.IngestJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		job, err := scanIngestJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *IngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	return r.ClaimPending(ctx, 10)
}

func (r *IngestJobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IngestJobStatusCompleted || status == domain.IngestJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

// CompleteJob records stats and drops the uploaded documents.
func (r *IngestJobRepository) CompleteJob(ctx context.Context, id string, stats *domain.IngestStats) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, error = NULL, stats = $2, processed_at = $3, documents = '[]'::jsonb WHERE id = $4`,
		domain.IngestJobStatusCompleted, stats, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) IncrementRetries(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE ingest_jobs SET retries = retries + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

// RecordFailure increments the retry count and sets status and error in one
// transaction, so a crash between the two never loses an attempt.
func (r *IngestJobRepository) RecordFailure(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	record := func(repo *IngestJobRepository) error {
		if err := repo.IncrementRetries(ctx, id); err != nil {
			return err
		}
		return repo.UpdateJobStatus(ctx, id, status, errMsg)
	}
	if r.runner == nil {
		return record(r)
	}
	return r.runner.WithTx(ctx, func(repos TxRepositories) error {
		return record(repos.IngestJobs())
	})
}

func scanIngestJob(row pgx.Row) (*domain.IngestJob, error) {
	var job domain.IngestJob
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.Mode, &job.Documents, &job.Status, &job.Retries, &errMsg, &job.Stats, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
