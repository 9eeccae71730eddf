package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// UUIDGenerator generates unique identifiers
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator generates random (version 4) UUIDs.
type DefaultUUIDGenerator struct{}

func (DefaultUUIDGenerator) NewString() string { return uuid.NewString() }

// IngestJobStore persists ingest jobs.
type IngestJobStore interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
}

// IngestJobService queues ingestion requests for the background worker.
type IngestJobService struct {
	store   IngestJobStore
	uuidGen UUIDGenerator
}

func NewIngestJobService(store IngestJobStore, uuidGen UUIDGenerator) *IngestJobService {
	if uuidGen == nil {
		uuidGen = DefaultUUIDGenerator{}
	}
	return &IngestJobService{store: store, uuidGen: uuidGen}
}

// Submit validates and enqueues a job. Empty docs ingest the configured
// document directory.
func (s *IngestJobService) Submit(ctx context.Context, mode domain.IngestMode, docs []domain.Document) (*domain.IngestJob, error) {
	job := domain.NewIngestJob(s.uuidGen.NewString(), mode, docs, time.Now().UTC())
	if err := domain.ValidateIngestJob(job); err != nil {
		return nil, domain.InvalidParameterError("%v", err)
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *IngestJobService) Get(ctx context.Context, id string) (*domain.IngestJob, error) {
	return s.store.GetByID(ctx, id)
}
