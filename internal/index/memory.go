// Package index implements the exact in-memory vector index and its
// snapshot persistence.
package index

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/embedding"
)

// ctxCheckEvery is how many vectors are scored between cancellation checks.
const ctxCheckEvery = 4096

// snapshot is an immutable view of the index contents. Vectors are stored
// row-major in one flat slice, L2-normalized.
type snapshot struct {
	chunks     []domain.Chunk
	vectors    []float32
	model      string
	generation uint64
}

// MemoryIndex is an exact inner-product index over normalized vectors.
//
// Readers load the current snapshot without locking. Writers serialize on mu
// and publish a fresh snapshot, so a search never observes a partial add.
type MemoryIndex struct {
	dimension int

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimension int, model string) *MemoryIndex {
	ix := &MemoryIndex{dimension: dimension}
	ix.snap.Store(&snapshot{model: model})
	return ix
}

func (ix *MemoryIndex) Dimension() int { return ix.dimension }
func (ix *MemoryIndex) Model() string  { return ix.snap.Load().model }

// Len returns the number of indexed entries.
func (ix *MemoryIndex) Len() int { return len(ix.snap.Load().chunks) }

// Size returns the number of indexed entries.
func (ix *MemoryIndex) Size(ctx context.Context) (int, error) { return ix.Len(), nil }

// Generation increases on every mutation. Pagination cursors use it to detect
// a swapped index.
func (ix *MemoryIndex) Generation() uint64 { return ix.snap.Load().generation }

// Header describes the index for persistence.
func (ix *MemoryIndex) Header() domain.IndexHeader {
	s := ix.snap.Load()
	return domain.IndexHeader{
		Dimension:      ix.dimension,
		EntryCount:     len(s.chunks),
		EmbeddingModel: s.model,
	}
}

// Add appends entries. All vectors are checked before anything is added, so
// a dimension mismatch leaves the index unchanged.
func (ix *MemoryIndex) Add(ctx context.Context, entries []domain.IndexEntry) error {
	for i, e := range entries {
		if len(e.Vector) != ix.dimension {
			return fmt.Errorf("entry %d (%s): %w", i, e.Chunk.ID, domain.DimensionMismatchError(ix.dimension, len(e.Vector)))
		}
	}
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	old := ix.snap.Load()
	chunks := make([]domain.Chunk, len(old.chunks), len(old.chunks)+len(entries))
	copy(chunks, old.chunks)
	vectors := make([]float32, len(old.vectors), len(old.vectors)+len(entries)*ix.dimension)
	copy(vectors, old.vectors)

	for _, e := range entries {
		chunks = append(chunks, e.Chunk)
		start := len(vectors)
		vectors = append(vectors, e.Vector...)
		embedding.Normalize(vectors[start:])
	}

	ix.snap.Store(&snapshot{chunks: chunks, vectors: vectors, model: old.model, generation: old.generation + 1})
	return nil
}

// Swap replaces the contents of ix with those of other. other must not be
// mutated afterwards.
func (ix *MemoryIndex) Swap(other *MemoryIndex) error {
	if other.dimension != ix.dimension {
		return domain.DimensionMismatchError(ix.dimension, other.dimension)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	src := other.snap.Load()
	old := ix.snap.Load()
	ix.snap.Store(&snapshot{chunks: src.chunks, vectors: src.vectors, model: src.model, generation: old.generation + 1})
	return nil
}

// Clone returns an independent index starting from the current contents.
func (ix *MemoryIndex) Clone() *MemoryIndex {
	s := ix.snap.Load()
	c := &MemoryIndex{dimension: ix.dimension}
	c.snap.Store(&snapshot{chunks: s.chunks, vectors: s.vectors, model: s.model})
	return c
}

// Search returns at most k entries ordered by descending cosine similarity.
// Equal scores keep insertion order.
func (ix *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, domain.InvalidParameterError("k must be positive, got %d", k)
	}
	if len(query) != ix.dimension {
		return nil, domain.DimensionMismatchError(ix.dimension, len(query))
	}

	s := ix.snap.Load()
	n := len(s.chunks)
	if n == 0 {
		return []domain.SearchResult{}, nil
	}
	if k > n {
		k = n
	}

	q := embedding.Normalized(query)
	dim := ix.dimension
	h := make(hitHeap, 0, k)
	for i := 0; i < n; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cand := hit{pos: i, score: embedding.Dot(q, s.vectors[i*dim:(i+1)*dim])}
		if len(h) < k {
			heap.Push(&h, cand)
			continue
		}
		if cand.score > h[0].score {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	sort.Slice(h, func(i, j int) bool { return ranksBefore(h[i], h[j]) })

	results := make([]domain.SearchResult, len(h))
	for i, c := range h {
		results[i] = domain.SearchResult{Chunk: s.chunks[c.pos], Score: c.score}
	}
	return results, nil
}

// Page returns up to limit chunks starting at offset, in insertion order,
// together with the total count and the generation they were read from.
func (ix *MemoryIndex) Page(offset, limit int) ([]domain.Chunk, int, uint64) {
	s := ix.snap.Load()
	total := len(s.chunks)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []domain.Chunk{}, total, s.generation
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]domain.Chunk, end-offset)
	copy(out, s.chunks[offset:end])
	return out, total, s.generation
}

// ListChunks is Page with the signature shared by every index backend.
func (ix *MemoryIndex) ListChunks(ctx context.Context, offset, limit int) (domain.ChunkPage, error) {
	chunks, total, gen := ix.Page(offset, limit)
	return domain.ChunkPage{Chunks: chunks, Total: total, Generation: gen}, nil
}

func (ix *MemoryIndex) IndexStats(ctx context.Context) (domain.IndexStats, error) {
	return ix.Stats(), nil
}

// Stats summarises the index contents.
func (ix *MemoryIndex) Stats() domain.IndexStats {
	s := ix.snap.Load()
	sources := make(map[string]struct{})
	for _, c := range s.chunks {
		sources[c.Metadata.Source] = struct{}{}
	}
	return domain.IndexStats{
		Entries:    len(s.chunks),
		Sources:    len(sources),
		Dimension:  ix.dimension,
		Model:      s.model,
		Generation: s.generation,
	}
}

type hit struct {
	pos   int
	score float32
}

// ranksBefore orders by score descending, then insertion position ascending.
func ranksBefore(a, b hit) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.pos < b.pos
}

// hitHeap keeps the current k best hits with the worst at the root.
type hitHeap []hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
