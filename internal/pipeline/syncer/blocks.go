package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/chain/evm/rpc"
	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/devaanshsinha/cogniflow/internal/metrics"
	"github.com/devaanshsinha/cogniflow/internal/store"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultKnownBlockCacheSize = 4096

// BlockResolver lazily fills in block header metadata for blocks referenced
// by new transfers. An in-process LRU keeps re-checked numbers off the
// database's hot path.
type BlockResolver struct {
	ledger rpc.LedgerClient
	repo   store.BlockRepository
	known  *lru.Cache[string, struct{}]
	logger *slog.Logger
}

func NewBlockResolver(ledger rpc.LedgerClient, repo store.BlockRepository, cacheSize int, logger *slog.Logger) (*BlockResolver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultKnownBlockCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create block cache: %w", err)
	}
	return &BlockResolver{
		ledger: ledger,
		repo:   repo,
		known:  cache,
		logger: logger.With("component", "block_resolver"),
	}, nil
}

func cacheKey(chain model.Chain, number int64) string {
	return fmt.Sprintf("%s:%d", chain, number)
}

// EnsureBlocks makes sure header rows exist for every given block number,
// fetching only the ones neither cached nor stored. No-ops on empty input.
func (r *BlockResolver) EnsureBlocks(ctx context.Context, chain model.Chain, numbers []int64) error {
	if len(numbers) == 0 {
		return nil
	}

	var candidates []int64
	for _, n := range numbers {
		if _, ok := r.known.Get(cacheKey(chain, n)); !ok {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	existing, err := r.repo.ExistingNumbers(ctx, chain, candidates)
	if err != nil {
		return fmt.Errorf("query existing blocks: %w", err)
	}

	for _, n := range candidates {
		if existing[n] {
			r.known.Add(cacheKey(chain, n), struct{}{})
			continue
		}

		header, err := r.ledger.GetBlockByNumber(ctx, n)
		if err != nil {
			return fmt.Errorf("fetch block %d: %w", n, err)
		}
		if header == nil {
			r.logger.Warn("block not found upstream; leaving header unresolved", "number", n)
			continue
		}

		block, err := headerToBlock(chain, header)
		if err != nil {
			return fmt.Errorf("decode block %d: %w", n, err)
		}
		if err := r.repo.Upsert(ctx, block); err != nil {
			return fmt.Errorf("upsert block %d: %w", n, err)
		}
		r.known.Add(cacheKey(chain, n), struct{}{})
		metrics.BlocksResolved.WithLabelValues(chain.String()).Inc()
	}
	return nil
}

func headerToBlock(chain model.Chain, header *rpc.Block) (*model.Block, error) {
	number, err := rpc.ParseHexInt64(header.Number)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	unix, err := rpc.ParseHexInt64(header.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("block timestamp: %w", err)
	}
	return &model.Block{
		Number:     number,
		Chain:      chain,
		Hash:       header.Hash,
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(unix, 0).UTC(),
	}, nil
}
