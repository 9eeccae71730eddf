package index

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// Publisher makes freshly embedded entries visible through a live
// MemoryIndex. Every publish builds a new index, persists it when a store is
// configured, and only then swaps it in, so a failure leaves the served
// index as it was. Publishes are serialized so an append always builds on
// the previous publish.
type Publisher struct {
	mu     sync.Mutex
	live   *MemoryIndex
	store  *SnapshotStore
	logger *slog.Logger
}

// NewPublisher returns a publisher for live. store may be nil to keep the
// index in memory only.
func NewPublisher(live *MemoryIndex, store *SnapshotStore, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{live: live, store: store, logger: logger}
}

// Replace serves exactly entries from now on.
func (p *Publisher) Replace(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fresh := NewMemoryIndex(p.live.Dimension(), p.live.Model())
	return p.publish(ctx, fresh, entries)
}

// Append serves the current entries followed by entries.
func (p *Publisher) Append(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publish(ctx, p.live.Clone(), entries)
}

func (p *Publisher) publish(ctx context.Context, fresh *MemoryIndex, entries []domain.IndexEntry) (int, error) {
	if err := fresh.Add(ctx, entries); err != nil {
		return 0, err
	}
	if p.store != nil {
		if err := p.store.Save(ctx, fresh); err != nil {
			return 0, err
		}
		p.logger.Info("index snapshot saved", "key", p.store.Key(), "entries", fresh.Len())
	}
	if err := p.live.Swap(fresh); err != nil {
		return 0, err
	}
	return fresh.Len(), nil
}
