package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/storage"
)

// Blob is a keyed byte store a snapshot can be written to.
type Blob interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (*storage.ObjectMetadata, error)
	Delete(ctx context.Context, key string) error
}

// SnapshotInfo is a stored snapshot's header and object metadata.
type SnapshotInfo struct {
	domain.IndexHeader
	Key        string    `json:"key"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SnapshotStore persists a MemoryIndex under a single key of a Blob.
type SnapshotStore struct {
	blob   Blob
	key    string
	expect Expectation
}

func NewSnapshotStore(blob Blob, key string, expect Expectation) *SnapshotStore {
	return &SnapshotStore{blob: blob, key: key, expect: expect}
}

// Key returns the location snapshots are written to.
func (s *SnapshotStore) Key() string { return s.key }

// Save encodes ix fully in memory before handing it to the blob, so a failed
// encode never touches the previous snapshot.
func (s *SnapshotStore) Save(ctx context.Context, ix *MemoryIndex) error {
	if ix.Dimension() != s.expect.Dimension {
		return domain.DimensionMismatchError(s.expect.Dimension, ix.Dimension())
	}
	var buf bytes.Buffer
	if err := Encode(&buf, ix); err != nil {
		return err
	}
	if err := s.blob.Put(ctx, s.key, &buf, int64(buf.Len())); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", s.key, err)
	}
	return nil
}

// Load reads and validates the stored snapshot. It returns
// domain.ErrIndexNotFound when nothing has been saved yet.
func (s *SnapshotStore) Load(ctx context.Context) (*MemoryIndex, error) {
	rc, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Decode(rc, s.expect)
}

// Inspect returns the stored snapshot's header without loading vectors.
func (s *SnapshotStore) Inspect(ctx context.Context) (*SnapshotInfo, error) {
	meta, err := s.stat(ctx)
	if err != nil {
		return nil, err
	}
	rc, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	header, err := DecodeHeader(rc)
	if err != nil {
		return nil, err
	}
	return &SnapshotInfo{
		IndexHeader: header,
		Key:         s.key,
		SizeBytes:   meta.ContentLength,
		ModifiedAt:  meta.LastModified,
	}, nil
}

// Exists reports whether a snapshot has been saved.
func (s *SnapshotStore) Exists(ctx context.Context) (bool, error) {
	_, err := s.stat(ctx)
	if errors.Is(err, domain.ErrIndexNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes the stored snapshot. The served index is not affected.
func (s *SnapshotStore) Delete(ctx context.Context) error {
	if err := s.blob.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", s.key, err)
	}
	return nil
}

func (s *SnapshotStore) stat(ctx context.Context) (*storage.ObjectMetadata, error) {
	meta, err := s.blob.Stat(ctx, s.key)
	if err != nil {
		return nil, s.notFound(err)
	}
	return meta, nil
}

func (s *SnapshotStore) open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.blob.Get(ctx, s.key)
	if err != nil {
		return nil, s.notFound(err)
	}
	return rc, nil
}

func (s *SnapshotStore) notFound(err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexNotFound, "index snapshot not found: "+s.key, err)
	}
	return fmt.Errorf("failed to read snapshot %s: %w", s.key, err)
}
