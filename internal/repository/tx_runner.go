package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// TxRepositories are bound to a single transaction.
type TxRepositories interface {
	Chunks(dimension int) *ChunkRepository
	IngestJobs() *IngestJobRepository
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Chunks(dimension int) *ChunkRepository {
	return NewChunkRepositoryWithTx(r.tx, dimension)
}

func (r *txRepos) IngestJobs() *IngestJobRepository {
	return NewIngestJobRepositoryWithTx(r.tx)
}
