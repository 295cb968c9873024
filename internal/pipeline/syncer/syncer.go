// Package syncer orchestrates incremental wallet ingestion:
// fetch → normalize → dedup → persist → cursor advance, one wallet per
// invocation. The only cross-call state is the persisted cursor.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/chain/evm/rpc"
	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/devaanshsinha/cogniflow/internal/metrics"
	"github.com/devaanshsinha/cogniflow/internal/pipeline/normalizer"
	"github.com/devaanshsinha/cogniflow/internal/store"
	"github.com/devaanshsinha/cogniflow/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 50

type Options struct {
	// LookbackBlocks bounds the initial window for wallets with no cursor.
	LookbackBlocks int64
	// MaxBlockSpan caps one window; 0 means sync to the chain head.
	MaxBlockSpan int64
	// BatchSize is the per-transaction persist batch size.
	BatchSize int
	// SkipIfSyncedWithin short-circuits wallets synced recently; 0 disables.
	SkipIfSyncedWithin time.Duration
}

// Result describes the window one sync invocation actually covered.
type Result struct {
	Chain           model.Chain
	Address         string
	LatestBlock     int64
	FromBlock       int64
	ToBlock         int64
	LastSyncedBlock int64
	Processed       int
	Quarantined     int
	HasMore         bool
	Skipped         bool
}

type Engine struct {
	ledger    rpc.LedgerClient
	db        store.TxBeginner
	wallets   store.WalletRepository
	transfers store.TransferRepository
	blocks    *BlockResolver
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

func New(
	ledger rpc.LedgerClient,
	db store.TxBeginner,
	wallets store.WalletRepository,
	transfers store.TransferRepository,
	blocks *BlockResolver,
	opts Options,
	logger *slog.Logger,
) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ledger:    ledger,
		db:        db,
		wallets:   wallets,
		transfers: transfers,
		blocks:    blocks,
		opts:      opts,
		logger:    logger.With("component", "syncer"),
		now:       time.Now,
	}
}

// SyncWallet runs one sync transition for one wallet. Callers must ensure
// at most one sync is in flight per wallet; the cursor write is not guarded
// by a distributed lock.
func (e *Engine) SyncWallet(ctx context.Context, w *model.Wallet) (*Result, error) {
	address := strings.ToLower(w.Address)
	log := e.logger.With("chain", w.Chain, "address", address)
	start := e.now()

	ctx, span := tracing.Tracer("syncer").Start(ctx, "syncer.SyncWallet")
	span.SetAttributes(
		attribute.String("chain", w.Chain.String()),
		attribute.String("address", address),
	)
	defer span.End()

	result, err := e.syncWallet(ctx, log, w, address)
	metrics.SyncLatency.WithLabelValues(w.Chain.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.SyncWalletsTotal.WithLabelValues(w.Chain.String(), "error").Inc()
		return nil, err
	}

	outcome := "synced"
	if result.Skipped {
		outcome = "skipped"
	}
	metrics.SyncWalletsTotal.WithLabelValues(w.Chain.String(), outcome).Inc()
	return result, nil
}

func (e *Engine) syncWallet(ctx context.Context, log *slog.Logger, w *model.Wallet, address string) (*Result, error) {
	result := &Result{Chain: w.Chain, Address: address}
	if w.LastSyncedBlock != nil {
		result.LastSyncedBlock = *w.LastSyncedBlock
	}

	// Fast path: recently synced wallets are a no-op, not a failure.
	if e.opts.SkipIfSyncedWithin > 0 && w.LastSyncedAt != nil {
		if e.now().Sub(*w.LastSyncedAt) < e.opts.SkipIfSyncedWithin {
			result.Skipped = true
			log.Debug("wallet synced recently; skipping", "last_synced_at", w.LastSyncedAt)
			return result, nil
		}
	}

	latest, err := e.ledger.GetBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve latest block: %w", err)
	}
	result.LatestBlock = latest

	fromBlock, toBlock := e.computeWindow(w, latest)
	result.FromBlock = fromBlock
	result.ToBlock = toBlock

	// Already current: report the existing cursor unchanged.
	if fromBlock > latest {
		log.Debug("wallet already current", "from_block", fromBlock, "latest", latest)
		return result, nil
	}

	transfers, quarantined, err := e.fetchAndNormalize(ctx, log, w.Chain, address, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	result.Quarantined = quarantined

	if e.blocks != nil && len(transfers) > 0 {
		if err := e.blocks.EnsureBlocks(ctx, w.Chain, distinctBlockNumbers(transfers)); err != nil {
			return nil, fmt.Errorf("resolve block metadata: %w", err)
		}
	}

	if err := e.persistBatches(ctx, transfers); err != nil {
		return nil, err
	}
	result.Processed = len(transfers)
	metrics.SyncTransfersProcessed.WithLabelValues(w.Chain.String()).Add(float64(len(transfers)))

	// Advance the cursor even for an empty window so the window itself
	// moves forward.
	newCursor := toBlock
	for _, t := range transfers {
		if t.BlockNumber > newCursor {
			newCursor = t.BlockNumber
		}
	}
	if err := e.wallets.AdvanceCursor(ctx, w.Chain, address, newCursor, e.now()); err != nil {
		return nil, fmt.Errorf("advance cursor: %w", err)
	}
	result.LastSyncedBlock = newCursor
	result.HasMore = newCursor < latest

	log.Info("wallet synced",
		"from_block", fromBlock,
		"to_block", toBlock,
		"latest", latest,
		"processed", result.Processed,
		"quarantined", result.Quarantined,
		"has_more", result.HasMore,
	)
	return result, nil
}

func (e *Engine) computeWindow(w *model.Wallet, latest int64) (int64, int64) {
	var fromBlock int64
	if w.LastSyncedBlock != nil {
		fromBlock = *w.LastSyncedBlock + 1
	} else {
		fromBlock = latest - e.opts.LookbackBlocks
		if fromBlock < 0 {
			fromBlock = 0
		}
	}

	toBlock := latest
	if e.opts.MaxBlockSpan > 0 {
		if capped := fromBlock + e.opts.MaxBlockSpan; capped < toBlock {
			toBlock = capped
		}
	}
	return fromBlock, toBlock
}

// fetchAndNormalize queries incoming and outgoing transfers concurrently,
// then normalizes the combined batch. Malformed records are quarantined
// (logged and counted) instead of aborting the wallet.
func (e *Engine) fetchAndNormalize(ctx context.Context, log *slog.Logger, chain model.Chain, address string, fromBlock, toBlock int64) ([]*model.Transfer, int, error) {
	var incoming, outgoing []rpc.AssetTransfer

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incoming, err = e.ledger.GetAssetTransfers(gCtx, rpc.AssetTransfersQuery{
			FromBlock: fromBlock, ToBlock: toBlock, ToAddress: address,
		})
		if err != nil {
			return fmt.Errorf("fetch incoming transfers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		outgoing, err = e.ledger.GetAssetTransfers(gCtx, rpc.AssetTransfersQuery{
			FromBlock: fromBlock, ToBlock: toBlock, FromAddress: address,
		})
		if err != nil {
			return fmt.Errorf("fetch outgoing transfers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	raw := make([]rpc.AssetTransfer, 0, len(incoming)+len(outgoing))
	raw = append(raw, incoming...)
	raw = append(raw, outgoing...)

	transfers := make([]*model.Transfer, 0, len(raw))
	quarantined := 0
	for _, rec := range raw {
		t, err := normalizer.Normalize(rec, chain)
		if err != nil {
			if errors.Is(err, normalizer.ErrUnsupportedCategory) {
				continue
			}
			quarantined++
			metrics.SyncRecordsQuarantined.WithLabelValues(chain.String()).Inc()
			log.Warn("record quarantined",
				"unique_id", rec.UniqueID,
				"tx_hash", rec.Hash,
				"error", err,
			)
			continue
		}
		transfers = append(transfers, t)
	}

	return normalizer.Dedup(transfers), quarantined, nil
}

// persistBatches writes transfers in fixed-size batches, one transaction
// per batch. A later batch's failure leaves earlier batches committed;
// ids are idempotent so partial progress is valid.
func (e *Engine) persistBatches(ctx context.Context, transfers []*model.Transfer) error {
	for start := 0; start < len(transfers); start += e.opts.BatchSize {
		end := start + e.opts.BatchSize
		if end > len(transfers) {
			end = len(transfers)
		}
		if err := e.persistBatch(ctx, transfers[start:end]); err != nil {
			return fmt.Errorf("persist batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (e *Engine) persistBatch(ctx context.Context, batch []*model.Transfer) error {
	dbTx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := dbTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			e.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	if err := e.transfers.BulkUpsertTx(ctx, dbTx, batch); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func distinctBlockNumbers(transfers []*model.Transfer) []int64 {
	seen := make(map[int64]bool, len(transfers))
	var numbers []int64
	for _, t := range transfers {
		if !seen[t.BlockNumber] {
			seen[t.BlockNumber] = true
			numbers = append(numbers, t.BlockNumber)
		}
	}
	return numbers
}
