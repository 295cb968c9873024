package model

import "time"

// PriceSnapshot is one USD quote for a token, keyed by (chain, token, hour).
// At most one row per token per hour; the price job overwrites on conflict.
type PriceSnapshot struct {
	Chain     Chain     `db:"chain"`
	Token     string    `db:"token_address"`
	Timestamp time.Time `db:"snapshot_at"` // truncated to the hour, UTC
	USD       float64   `db:"usd"`
	CreatedAt time.Time `db:"created_at"`
}
