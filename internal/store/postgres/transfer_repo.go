package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
)

type TransferRepo struct {
	db *DB
}

func NewTransferRepo(db *DB) *TransferRepo {
	return &TransferRepo{db: db}
}

// BulkUpsertTx writes one batch of transfers inside the given transaction.
// Ids are deterministic, so re-ingesting the same events overwrites in
// place instead of duplicating.
func (r *TransferRepo) BulkUpsertTx(ctx context.Context, tx *sql.Tx, transfers []*model.Transfer) error {
	for _, t := range transfers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transfers (
				id, chain, block_number, block_timestamp, tx_hash, log_index,
				token_address, symbol, decimals, from_address, to_address,
				amount_raw, amount_dec, stale
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				block_number = EXCLUDED.block_number,
				block_timestamp = EXCLUDED.block_timestamp,
				token_address = EXCLUDED.token_address,
				symbol = EXCLUDED.symbol,
				decimals = EXCLUDED.decimals,
				from_address = EXCLUDED.from_address,
				to_address = EXCLUDED.to_address,
				amount_raw = EXCLUDED.amount_raw,
				amount_dec = EXCLUDED.amount_dec,
				stale = EXCLUDED.stale
		`, t.ID, t.Chain, t.BlockNumber, t.Timestamp, t.TxHash, t.LogIndex,
			t.Token, t.Symbol, t.Decimals, t.FromAddress, t.ToAddress,
			t.AmountRaw, t.AmountDec, t.Stale,
		)
		if err != nil {
			return fmt.Errorf("upsert transfer %s: %w", t.ID, err)
		}
	}
	return nil
}

// ListByTimeRange returns transfers whose block timestamp falls in
// [from, to), newest first.
func (r *TransferRepo) ListByTimeRange(ctx context.Context, chain model.Chain, from, to time.Time, limit int) ([]model.Transfer, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chain, block_number, block_timestamp, tx_hash, log_index,
			token_address, symbol, decimals, from_address, to_address,
			amount_raw, amount_dec, stale, created_at
		FROM transfers
		WHERE chain = $1 AND block_timestamp >= $2 AND block_timestamp < $3
		ORDER BY block_timestamp DESC, log_index DESC
		LIMIT $4
	`, chain, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list by time range: %w", err)
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func (r *TransferRepo) DistinctTokens(ctx context.Context, chain model.Chain) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT token_address
		FROM transfers
		WHERE chain = $1 AND token_address <> $2
		ORDER BY token_address
	`, chain, model.ZeroAddress)
	if err != nil {
		return nil, fmt.Errorf("distinct tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// ListUnembedded returns up to limit transfers with no embedding row,
// most recent first.
func (r *TransferRepo) ListUnembedded(ctx context.Context, chain model.Chain, limit int) ([]model.Transfer, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.chain, t.block_number, t.block_timestamp, t.tx_hash, t.log_index,
			t.token_address, t.symbol, t.decimals, t.from_address, t.to_address,
			t.amount_raw, t.amount_dec, t.stale, t.created_at
		FROM transfers t
		LEFT JOIN embeddings e ON e.id = t.id
		WHERE t.chain = $1 AND e.id IS NULL
		ORDER BY t.block_number DESC, t.log_index DESC
		LIMIT $2
	`, chain, limit)
	if err != nil {
		return nil, fmt.Errorf("list unembedded: %w", err)
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func scanTransfers(rows *sql.Rows) ([]model.Transfer, error) {
	var transfers []model.Transfer
	for rows.Next() {
		var t model.Transfer
		if err := rows.Scan(
			&t.ID, &t.Chain, &t.BlockNumber, &t.Timestamp, &t.TxHash, &t.LogIndex,
			&t.Token, &t.Symbol, &t.Decimals, &t.FromAddress, &t.ToAddress,
			&t.AmountRaw, &t.AmountDec, &t.Stale, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
