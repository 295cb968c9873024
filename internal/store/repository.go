package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WalletRepository provides access to tracked wallets and their cursors.
type WalletRepository interface {
	GetActive(ctx context.Context, chain model.Chain) ([]model.Wallet, error)
	FindByAddress(ctx context.Context, chain model.Chain, address string) (*model.Wallet, error)
	Upsert(ctx context.Context, w *model.Wallet) error
	// AdvanceCursor moves the wallet cursor forward. The stored block never
	// decreases, even if callers race.
	AdvanceCursor(ctx context.Context, chain model.Chain, address string, block int64, at time.Time) error
}

// TransferRepository provides access to canonical transfer data.
type TransferRepository interface {
	BulkUpsertTx(ctx context.Context, tx *sql.Tx, transfers []*model.Transfer) error
	DistinctTokens(ctx context.Context, chain model.Chain) ([]string, error)
	ListUnembedded(ctx context.Context, chain model.Chain, limit int) ([]model.Transfer, error)
	// ListByTimeRange serves read-only downstream consumers; [from, to) on
	// the block timestamp, newest first.
	ListByTimeRange(ctx context.Context, chain model.Chain, from, to time.Time, limit int) ([]model.Transfer, error)
}

// BlockRepository provides access to block header metadata.
type BlockRepository interface {
	ExistingNumbers(ctx context.Context, chain model.Chain, numbers []int64) (map[int64]bool, error)
	Upsert(ctx context.Context, b *model.Block) error
}

// PriceRepository provides access to hourly token price snapshots.
type PriceRepository interface {
	Upsert(ctx context.Context, s *model.PriceSnapshot) error
}

// EmbeddingRepository provides access to transfer embeddings.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, e *model.Embedding) error
}
