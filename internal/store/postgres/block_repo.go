package postgres

import (
	"context"
	"fmt"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/lib/pq"
)

type BlockRepo struct {
	db *DB
}

func NewBlockRepo(db *DB) *BlockRepo {
	return &BlockRepo{db: db}
}

func (r *BlockRepo) ExistingNumbers(ctx context.Context, chain model.Chain, numbers []int64) (map[int64]bool, error) {
	existing := make(map[int64]bool, len(numbers))
	if len(numbers) == 0 {
		return existing, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT number FROM blocks
		WHERE chain = $1 AND number = ANY($2)
	`, chain, pq.Array(numbers))
	if err != nil {
		return nil, fmt.Errorf("existing blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan block number: %w", err)
		}
		existing[n] = true
	}
	return existing, rows.Err()
}

func (r *BlockRepo) Upsert(ctx context.Context, b *model.Block) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blocks (number, chain, hash, parent_hash, block_timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain, number) DO UPDATE SET
			hash = EXCLUDED.hash,
			parent_hash = EXCLUDED.parent_hash,
			block_timestamp = EXCLUDED.block_timestamp
	`, b.Number, b.Chain, b.Hash, b.ParentHash, b.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert block %d: %w", b.Number, err)
	}
	return nil
}
