package postgres

import (
	"context"
	"fmt"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/lib/pq"
)

type EmbeddingRepo struct {
	db *DB
}

func NewEmbeddingRepo(db *DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) Upsert(ctx context.Context, e *model.Embedding) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO embeddings (id, chain, vector, metadata, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			vector = EXCLUDED.vector,
			metadata = EXCLUDED.metadata,
			created_at = now()
	`, e.ID, e.Chain, pq.Array(e.Vector), string(e.Metadata))
	if err != nil {
		return fmt.Errorf("upsert embedding %s: %w", e.ID, err)
	}
	return nil
}
