package model

import "time"

// Block holds header metadata for blocks referenced by ingested transfers.
// Rows are created lazily by the block resolver.
type Block struct {
	Number     int64     `db:"number"`
	Chain      Chain     `db:"chain"`
	Hash       string    `db:"hash"`
	ParentHash string    `db:"parent_hash"`
	Timestamp  time.Time `db:"block_timestamp"`
	CreatedAt  time.Time `db:"created_at"`
}
