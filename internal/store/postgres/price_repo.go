package postgres

import (
	"context"
	"fmt"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
)

type PriceRepo struct {
	db *DB
}

func NewPriceRepo(db *DB) *PriceRepo {
	return &PriceRepo{db: db}
}

func (r *PriceRepo) Upsert(ctx context.Context, s *model.PriceSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_snapshots (chain, token_address, snapshot_at, usd)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain, token_address, snapshot_at) DO UPDATE SET
			usd = EXCLUDED.usd
	`, s.Chain, s.Token, s.Timestamp, s.USD)
	if err != nil {
		return fmt.Errorf("upsert price snapshot: %w", err)
	}
	return nil
}
