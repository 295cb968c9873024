package model

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a tracked external address plus its ingestion cursor.
// Rows are created by the operator; only the sync engine mutates the cursor,
// and only forward.
type Wallet struct {
	ID              uuid.UUID  `db:"id"`
	Chain           Chain      `db:"chain"`
	Address         string     `db:"address"`
	Label           *string    `db:"label"`
	LastSyncedBlock *int64     `db:"last_synced_block"`
	LastSyncedAt    *time.Time `db:"last_synced_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}
