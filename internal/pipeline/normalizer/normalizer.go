// Package normalizer converts raw vendor transfer records into canonical
// Transfer entities. Normalize is pure: identical input always yields an
// identical id and amount rendering.
package normalizer

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/chain/evm/rpc"
	"github.com/devaanshsinha/cogniflow/internal/domain/amount"
	"github.com/devaanshsinha/cogniflow/internal/domain/model"
)

// ErrUnsupportedCategory marks records outside the supported transfer
// category. Callers filter these silently.
var ErrUnsupportedCategory = errors.New("unsupported transfer category")

// ErrLogIndexUnresolved marks records whose log index cannot be resolved
// from an explicit field or the vendor unique id. Guessing an index would
// collide ids for multi-event transactions, so the record is rejected.
var ErrLogIndexUnresolved = errors.New("log index unresolved")

// Normalize converts one raw vendor record into a canonical Transfer.
func Normalize(raw rpc.AssetTransfer, chain model.Chain) (*model.Transfer, error) {
	if !strings.EqualFold(raw.Category, string(model.CategoryERC20)) {
		return nil, fmt.Errorf("category %q: %w", raw.Category, ErrUnsupportedCategory)
	}

	txHash := strings.ToLower(strings.TrimSpace(raw.Hash))
	if txHash == "" {
		return nil, fmt.Errorf("record has no transaction hash")
	}

	blockNumber, err := rpc.ParseFlexInt(raw.BlockNum)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}

	logIndex, err := resolveLogIndex(raw)
	if err != nil {
		return nil, err
	}

	id := strings.ToLower(strings.TrimSpace(raw.UniqueID))
	if id == "" {
		id = fmt.Sprintf("%s:%d", txHash, logIndex)
	}

	var decimals *int32
	if raw.RawContract.Decimal != "" {
		d, err := rpc.ParseFlexInt(raw.RawContract.Decimal)
		if err != nil {
			return nil, fmt.Errorf("decimals: %w", err)
		}
		d32 := int32(d)
		decimals = &d32
	}

	rawAmount, err := parseRawAmount(raw, decimals)
	if err != nil {
		return nil, err
	}

	var timestamp *time.Time
	if ts := raw.Metadata.BlockTimestamp; ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			utc := parsed.UTC()
			timestamp = &utc
		}
	}

	return &model.Transfer{
		ID:          id,
		Chain:       chain,
		BlockNumber: blockNumber,
		Timestamp:   timestamp,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Token:       strings.ToLower(raw.RawContract.Address),
		Symbol:      raw.Asset,
		Decimals:    decimals,
		FromAddress: strings.ToLower(raw.From),
		ToAddress:   strings.ToLower(raw.To),
		AmountRaw:   rawAmount.String(),
		AmountDec:   amount.Render(rawAmount, decimals),
	}, nil
}

// resolveLogIndex takes the explicit field when present, otherwise a
// numeric suffix of the vendor unique id ("0xhash:log:7"). First match
// wins; no match rejects the record.
func resolveLogIndex(raw rpc.AssetTransfer) (int64, error) {
	if raw.LogIndex != nil {
		return int64(*raw.LogIndex), nil
	}
	if uid := strings.TrimSpace(raw.UniqueID); uid != "" {
		parts := strings.Split(uid, ":")
		if len(parts) > 1 {
			if idx, err := rpc.ParseFlexInt(parts[len(parts)-1]); err == nil {
				return idx, nil
			}
		}
	}
	return 0, ErrLogIndexUnresolved
}

func parseRawAmount(raw rpc.AssetTransfer, decimals *int32) (*big.Int, error) {
	if raw.RawContract.Value != "" {
		parsed, err := amount.ParseRaw(raw.RawContract.Value)
		if err != nil {
			return nil, fmt.Errorf("raw amount: %w", err)
		}
		return parsed, nil
	}
	if raw.Value != "" {
		scale := int32(0)
		if decimals != nil {
			scale = *decimals
		}
		parsed, err := amount.FromHuman(raw.Value.String(), scale)
		if err != nil {
			return nil, fmt.Errorf("human amount: %w", err)
		}
		return parsed, nil
	}
	zero, _ := amount.ParseRaw("")
	return zero, nil
}

// Dedup collapses duplicate ids within a batch, keeping the last-seen
// record for an id at its first-seen position.
func Dedup(transfers []*model.Transfer) []*model.Transfer {
	if len(transfers) < 2 {
		return transfers
	}
	position := make(map[string]int, len(transfers))
	out := transfers[:0]
	for _, t := range transfers {
		if at, seen := position[t.ID]; seen {
			out[at] = t
			continue
		}
		position[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}
