package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/embedding"
)

const chunkColumns = `chunk_id, content, token_count, source, chunk_index, total_chunks, file_type, start_char, end_char, extra`

var errHeaderMissing = errors.New("index header missing")

// ChunkRepository is a pgvector-backed vector index. Vectors are stored
// normalized and ranked by negative inner product, ties by insertion order.
type ChunkRepository struct {
	db        dbtx
	runner    *TxRunner
	dimension int
}

func NewChunkRepository(pool *pgxpool.Pool, dimension int) *ChunkRepository {
	return &ChunkRepository{db: pool, runner: NewTxRunner(pool), dimension: dimension}
}

func NewChunkRepositoryWithTx(tx pgx.Tx, dimension int) *ChunkRepository {
	return &ChunkRepository{db: tx, dimension: dimension}
}

func (r *ChunkRepository) Dimension() int { return r.dimension }

// EnsureHeader records the dimension and model on first use and rejects a
// database built for a different configuration. An empty model accepts any
// stored model.
func (r *ChunkRepository) EnsureHeader(ctx context.Context, model string) error {
	header, err := r.Header(ctx)
	if errors.Is(err, errHeaderMissing) {
		_, err = r.db.Exec(ctx,
			`INSERT INTO index_meta (id, dimension, embedding_model) VALUES (1, $1, $2)
			 ON CONFLICT (id) DO NOTHING`,
			r.dimension, model,
		)
		if err != nil {
			return fmt.Errorf("failed to create index header: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if header.Dimension != r.dimension {
		return domain.IndexCorruptError("stored dimension %d does not match configured %d", header.Dimension, r.dimension)
	}
	if model != "" && header.EmbeddingModel != model {
		return domain.IndexCorruptError("stored model %q does not match configured %q", header.EmbeddingModel, model)
	}
	return nil
}

// Header returns the stored index header.
func (r *ChunkRepository) Header(ctx context.Context) (domain.IndexHeader, error) {
	var h domain.IndexHeader
	err := r.db.QueryRow(ctx,
		`SELECT m.dimension, m.embedding_model, (SELECT count(*) FROM chunks), to_char(m.created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		 FROM index_meta m WHERE m.id = 1`,
	).Scan(&h.Dimension, &h.EmbeddingModel, &h.EntryCount, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return h, errHeaderMissing
		}
		return h, err
	}
	return h, nil
}

// Add appends entries in one transaction. A dimension mismatch rejects the
// whole batch.
func (r *ChunkRepository) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if err := r.checkDimensions(entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return r.inTx(ctx, func(repo *ChunkRepository) error {
		if err := repo.insert(ctx, entries); err != nil {
			return err
		}
		return repo.bumpGeneration(ctx)
	})
}

// Append adds entries and returns the new index size.
func (r *ChunkRepository) Append(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	if err := r.Add(ctx, entries); err != nil {
		return 0, err
	}
	return r.Size(ctx)
}

// Replace swaps the stored entries for entries in one transaction, so
// concurrent searches see either the old or the new set.
func (r *ChunkRepository) Replace(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	if err := r.checkDimensions(entries); err != nil {
		return 0, err
	}
	err := r.inTx(ctx, func(repo *ChunkRepository) error {
		if _, err := repo.db.Exec(ctx, `TRUNCATE TABLE chunks RESTART IDENTITY`); err != nil {
			return fmt.Errorf("failed to truncate chunks: %w", err)
		}
		if err := repo.insert(ctx, entries); err != nil {
			return err
		}
		return repo.bumpGeneration(ctx)
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (r *ChunkRepository) Search(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, domain.InvalidParameterError("k must be positive, got %d", k)
	}
	if len(query) != r.dimension {
		return nil, domain.DimensionMismatchError(r.dimension, len(query))
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`, -(embedding <#> $1) AS score
		 FROM chunks
		 ORDER BY embedding <#> $1, seq
		 LIMIT $2`,
		pgvector.NewVector(embedding.Normalized(query)), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var c domain.Chunk
		var score float64
		if err := rows.Scan(chunkDest(&c, &score)...); err != nil {
			return nil, err
		}
		finishChunk(&c)
		results = append(results, domain.SearchResult{Chunk: c, Score: float32(score)})
	}
	return results, rows.Err()
}

func (r *ChunkRepository) Size(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *ChunkRepository) ListChunks(ctx context.Context, offset, limit int) (domain.ChunkPage, error) {
	var page domain.ChunkPage
	err := r.db.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM chunks), COALESCE((SELECT generation FROM index_meta WHERE id = 1), 0)`,
	).Scan(&page.Total, &page.Generation)
	if err != nil {
		return page, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+` FROM chunks ORDER BY seq OFFSET $1 LIMIT $2`,
		max(offset, 0), max(limit, 0),
	)
	if err != nil {
		return page, err
	}
	defer rows.Close()

	page.Chunks = []domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(chunkDest(&c, nil)...); err != nil {
			return page, err
		}
		finishChunk(&c)
		page.Chunks = append(page.Chunks, c)
	}
	return page, rows.Err()
}

func (r *ChunkRepository) IndexStats(ctx context.Context) (domain.IndexStats, error) {
	stats := domain.IndexStats{Dimension: r.dimension}
	err := r.db.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM chunks),
		        (SELECT count(DISTINCT source) FROM chunks),
		        COALESCE((SELECT embedding_model FROM index_meta WHERE id = 1), ''),
		        COALESCE((SELECT generation FROM index_meta WHERE id = 1), 0)`,
	).Scan(&stats.Entries, &stats.Sources, &stats.Model, &stats.Generation)
	return stats, err
}

func (r *ChunkRepository) checkDimensions(entries []domain.IndexEntry) error {
	for i, e := range entries {
		if len(e.Vector) != r.dimension {
			return fmt.Errorf("entry %d (%s): %w", i, e.Chunk.ID, domain.DimensionMismatchError(r.dimension, len(e.Vector)))
		}
	}
	return nil
}

func (r *ChunkRepository) inTx(ctx context.Context, fn func(repo *ChunkRepository) error) error {
	if r.runner == nil {
		return fn(r)
	}
	return r.runner.WithTx(ctx, func(repos TxRepositories) error {
		return fn(repos.Chunks(r.dimension))
	})
}

func (r *ChunkRepository) insert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		m := e.Chunk.Metadata
		extra := m.Extra
		if extra == nil {
			extra = map[string]string{}
		}
		batch.Queue(
			`INSERT INTO chunks
				(chunk_id, content, token_count, source, chunk_index, total_chunks, file_type, start_char, end_char, extra, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			e.Chunk.ID, e.Chunk.Text, e.Chunk.TokenCount, m.Source, m.ChunkIndex, m.TotalChunks,
			string(m.FileType), m.StartChar, m.EndChar, extra,
			pgvector.NewVector(embedding.Normalized(e.Vector)),
		)
	}

	br := r.db.SendBatch(ctx, batch)
	for i := range entries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to insert chunk %s: %w", entries[i].Chunk.ID, err)
		}
	}
	return br.Close()
}

func (r *ChunkRepository) bumpGeneration(ctx context.Context) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE index_meta SET generation = generation + 1, updated_at = now() WHERE id = 1`,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errHeaderMissing
	}
	return nil
}

func chunkDest(c *domain.Chunk, score *float64) []any {
	dest := []any{
		&c.ID, &c.Text, &c.TokenCount,
		&c.Metadata.Source, &c.Metadata.ChunkIndex, &c.Metadata.TotalChunks,
		&c.Metadata.FileType, &c.Metadata.StartChar, &c.Metadata.EndChar, &c.Metadata.Extra,
	}
	if score != nil {
		dest = append(dest, score)
	}
	return dest
}

func finishChunk(c *domain.Chunk) {
	c.Metadata.CharCount = c.Metadata.EndChar - c.Metadata.StartChar
	if len(c.Metadata.Extra) == 0 {
		c.Metadata.Extra = nil
	}
}
