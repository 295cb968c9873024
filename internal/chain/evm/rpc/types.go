package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a well-formed but rejected remote call. Retryability is
// decided from the code by the retry classifier.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) ProtocolCode() int {
	return e.Code
}

// HTTPError is a non-200 transport response. Retryability is decided from
// the status by the retry classifier.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

func (e *HTTPError) HTTPStatus() int {
	return e.Status
}

type Block struct {
	Number     string `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	Timestamp  string `json:"timestamp"`
}

// AssetTransfersQuery selects transfers for one wallet side over a closed
// block range. Exactly one of FromAddress/ToAddress should be set.
type AssetTransfersQuery struct {
	FromBlock   int64
	ToBlock     int64
	FromAddress string
	ToAddress   string
}

type assetTransfersParams struct {
	FromBlock    string   `json:"fromBlock"`
	ToBlock      string   `json:"toBlock"`
	FromAddress  string   `json:"fromAddress,omitempty"`
	ToAddress    string   `json:"toAddress,omitempty"`
	Category     []string `json:"category"`
	WithMetadata bool     `json:"withMetadata"`
	MaxCount     string   `json:"maxCount"`
	PageKey      string   `json:"pageKey,omitempty"`
}

type assetTransfersResult struct {
	Transfers []AssetTransfer `json:"transfers"`
	PageKey   string          `json:"pageKey"`
}

// AssetTransfer is the vendor's raw transfer record, decoded once at the
// transport boundary. Optional fields stay pointers so the normalizer can
// tell absent from zero.
type AssetTransfer struct {
	UniqueID    string           `json:"uniqueId"`
	Hash        string           `json:"hash"`
	BlockNum    string           `json:"blockNum"`
	Category    string           `json:"category"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Value       json.Number      `json:"value"`
	Asset       string           `json:"asset"`
	LogIndex    *FlexInt         `json:"logIndex,omitempty"`
	RawContract RawContract      `json:"rawContract"`
	Metadata    TransferMetadata `json:"metadata"`
}

type RawContract struct {
	Value   string `json:"value"`   // hex base units
	Address string `json:"address"` // token contract
	Decimal string `json:"decimal"` // hex decimals
}

type TransferMetadata struct {
	BlockTimestamp string `json:"blockTimestamp"`
}

// FlexInt decodes a JSON integer given as a number, a decimal string, or a
// 0x-prefixed hex string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return fmt.Errorf("empty flex int")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseFlexInt(s)
		if err != nil {
			return err
		}
		*f = FlexInt(v)
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("parse flex int %q: %w", string(b), err)
	}
	*f = FlexInt(v)
	return nil
}

// ParseFlexInt parses a decimal or 0x-prefixed hex integer string.
func ParseFlexInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty int value")
	}
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		return ParseHexInt64(s)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", s, err)
	}
	return v, nil
}

// ParseHexInt64 parses a 0x-prefixed hex quantity as int64.
func ParseHexInt64(value string) (int64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", value, err)
	}
	return int64(parsed), nil
}

func formatHexInt64(value int64) string {
	return fmt.Sprintf("0x%x", value)
}
