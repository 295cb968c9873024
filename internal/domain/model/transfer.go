package model

import "time"

// Transfer is one canonical token-transfer event. ID is deterministic
// (vendor unique id, or txHash:logIndex) so re-ingestion upserts in place.
type Transfer struct {
	ID          string     `db:"id"`
	Chain       Chain      `db:"chain"`
	BlockNumber int64      `db:"block_number"`
	Timestamp   *time.Time `db:"block_timestamp"`
	TxHash      string     `db:"tx_hash"`
	LogIndex    int64      `db:"log_index"`
	Token       string     `db:"token_address"`
	Symbol      string     `db:"symbol"`
	Decimals    *int32     `db:"decimals"`
	FromAddress string     `db:"from_address"`
	ToAddress   string     `db:"to_address"`
	AmountRaw   string     `db:"amount_raw"` // NUMERIC(78,0) as string, base units
	AmountDec   string     `db:"amount_dec"` // exact decimal rendering, scale ≤ 18
	Stale       bool       `db:"stale"`
	CreatedAt   time.Time  `db:"created_at"`
}
