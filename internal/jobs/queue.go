package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// MemoryJobQueue is an in-process IngestJobRepository used when no database
// is configured. Jobs are lost on restart.
type MemoryJobQueue struct {
	mu    sync.Mutex
	jobs  map[string]*domain.IngestJob
	order []string
	batch int
}

// NewMemoryJobQueue returns an empty queue that hands out at most batch
// jobs per claim.
func NewMemoryJobQueue(batch int) *MemoryJobQueue {
	if batch <= 0 {
		batch = 10
	}
	return &MemoryJobQueue{jobs: make(map[string]*domain.IngestJob), batch: batch}
}

func (q *MemoryJobQueue) Create(ctx context.Context, job *domain.IngestJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *job
	q.jobs[job.ID] = &cp
	q.order = append(q.order, job.ID)
	return nil
}

func (q *MemoryJobQueue) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, domain.ErrIngestJobNotFound
	}
	cp := *job
	return &cp, nil
}

// GetPendingJobs claims pending jobs in submission order.
func (q *MemoryJobQueue) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*domain.IngestJob
	for _, id := range q.order {
		job := q.jobs[id]
		if job.Status != domain.IngestJobStatusPending {
			continue
		}
		job.Status = domain.IngestJobStatusProcessing
		job.ProcessedAt = nil
		cp := *job
		out = append(out, &cp)
		if len(out) == q.batch {
			break
		}
	}
	return out, nil
}

func (q *MemoryJobQueue) RecordFailure(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	return q.update(jobID, func(job *domain.IngestJob) {
		job.Retries++
		job.Status = status
		job.Error = errMsg
		if status == domain.IngestJobStatusFailed {
			now := time.Now().UTC()
			job.ProcessedAt = &now
		}
	})
}

func (q *MemoryJobQueue) CompleteJob(ctx context.Context, jobID string, stats *domain.IngestStats) error {
	return q.update(jobID, func(job *domain.IngestJob) {
		now := time.Now().UTC()
		job.Status = domain.IngestJobStatusCompleted
		job.Error = ""
		job.Stats = stats
		job.ProcessedAt = &now
		// Documents are not needed once ingested.
		job.Documents = nil
	})
}

func (q *MemoryJobQueue) update(id string, fn func(*domain.IngestJob)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return domain.ErrIngestJobNotFound
	}
	fn(job)
	return nil
}
