package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
)

type WalletRepo struct {
	db *DB
}

func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

func (r *WalletRepo) GetActive(ctx context.Context, chain model.Chain) ([]model.Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chain, address, label, last_synced_block, last_synced_at, created_at, updated_at
		FROM wallets
		WHERE chain = $1
		ORDER BY address
	`, chain)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []model.Wallet
	for rows.Next() {
		var w model.Wallet
		if err := rows.Scan(
			&w.ID, &w.Chain, &w.Address, &w.Label,
			&w.LastSyncedBlock, &w.LastSyncedAt, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (r *WalletRepo) FindByAddress(ctx context.Context, chain model.Chain, address string) (*model.Wallet, error) {
	var w model.Wallet
	err := r.db.QueryRowContext(ctx, `
		SELECT id, chain, address, label, last_synced_block, last_synced_at, created_at, updated_at
		FROM wallets
		WHERE chain = $1 AND address = $2
	`, chain, address).Scan(
		&w.ID, &w.Chain, &w.Address, &w.Label,
		&w.LastSyncedBlock, &w.LastSyncedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find wallet: %w", err)
	}
	return &w, nil
}

func (r *WalletRepo) Upsert(ctx context.Context, w *model.Wallet) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (id, chain, address, label)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain, address) DO UPDATE SET
			label = COALESCE(EXCLUDED.label, wallets.label),
			updated_at = now()
	`, w.ID, w.Chain, w.Address, w.Label)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

func (r *WalletRepo) AdvanceCursor(ctx context.Context, chain model.Chain, address string, block int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET
			last_synced_block = GREATEST(COALESCE(last_synced_block, -1), $3),
			last_synced_at = $4,
			updated_at = now()
		WHERE chain = $1 AND address = $2
	`, chain, address, block, at)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}
