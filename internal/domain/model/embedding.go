package model

import (
	"encoding/json"
	"time"
)

// Embedding is the semantic vector for one transfer, one-to-one by transfer
// id. Row existence marks the transfer as embedded; upserts refresh vector,
// metadata and created_at.
type Embedding struct {
	ID        string          `db:"id"` // transfer id
	Chain     Chain           `db:"chain"`
	Vector    []float64       `db:"vector"`
	Metadata  json.RawMessage `db:"metadata"`
	CreatedAt time.Time       `db:"created_at"`
}

// EmbeddingMetadata is the denormalized payload stored alongside the vector.
type EmbeddingMetadata struct {
	Chain       string `json:"chain"`
	Token       string `json:"token"`
	Symbol      string `json:"symbol"`
	Amount      string `json:"amount"`
	FromAddress string `json:"from"`
	ToAddress   string `json:"to"`
	TxHash      string `json:"txHash"`
	BlockNumber int64  `json:"blockNumber"`
}
