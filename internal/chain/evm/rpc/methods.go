package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/devaanshsinha/cogniflow/internal/metrics"
)

func (c *Client) GetBlockNumber(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}

	var hexNum string
	if err := json.Unmarshal(result, &hexNum); err != nil {
		return 0, fmt.Errorf("unmarshal block number: %w", err)
	}

	blockNumber, err := ParseHexInt64(hexNum)
	if err != nil {
		return 0, fmt.Errorf("parse block number: %w", err)
	}
	return blockNumber, nil
}

func (c *Client) GetBlockByNumber(ctx context.Context, blockNumber int64) (*Block, error) {
	params := []interface{}{formatHexInt64(blockNumber), false}
	result, err := c.call(ctx, "eth_getBlockByNumber", params)
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber(%d): %w", blockNumber, err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var block Block
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &block, nil
}

// GetAssetTransfers pages through the vendor transfer listing for one wallet
// side and concatenates the results. If the pagination depth cap is reached
// while a continuation token remains, the result is truncated and a warning
// is logged rather than failing the fetch.
func (c *Client) GetAssetTransfers(ctx context.Context, query AssetTransfersQuery) ([]AssetTransfer, error) {
	params := assetTransfersParams{
		FromBlock:    formatHexInt64(query.FromBlock),
		ToBlock:      formatHexInt64(query.ToBlock),
		FromAddress:  query.FromAddress,
		ToAddress:    query.ToAddress,
		Category:     []string{supportedCategoryID},
		WithMetadata: true,
		MaxCount:     formatHexInt64(int64(c.pageSize)),
	}

	var all []AssetTransfer
	for page := 0; page < c.maxPages; page++ {
		result, err := c.call(ctx, "alchemy_getAssetTransfers", []interface{}{params})
		if err != nil {
			return nil, fmt.Errorf("alchemy_getAssetTransfers: %w", err)
		}

		var pageResult assetTransfersResult
		if err := json.Unmarshal(result, &pageResult); err != nil {
			return nil, fmt.Errorf("unmarshal asset transfers: %w", err)
		}
		all = append(all, pageResult.Transfers...)

		if pageResult.PageKey == "" {
			return all, nil
		}
		params.PageKey = pageResult.PageKey
	}

	metrics.RPCPaginationTruncations.WithLabelValues(c.chain).Inc()
	c.logger.Warn("reached pagination depth; truncating transfer fetch",
		"from_block", query.FromBlock,
		"to_block", query.ToBlock,
		"from_address", query.FromAddress,
		"to_address", query.ToAddress,
		"max_pages", c.maxPages,
		"fetched", len(all),
	)
	return all, nil
}
