// Package enrich holds the two periodic enrichment jobs that read
// persisted transfers and write derived records: hourly price snapshots
// and semantic embeddings. Both isolate failure per batch and report
// structured partial results instead of aborting a run.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/devaanshsinha/cogniflow/internal/metrics"
	"github.com/devaanshsinha/cogniflow/internal/pricing"
	"github.com/devaanshsinha/cogniflow/internal/store"
	"github.com/devaanshsinha/cogniflow/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// PriceAPI is the external price vendor surface.
type PriceAPI interface {
	MaxBatchSize() int
	GetTokenPrices(ctx context.Context, chain model.Chain, tokens []string) (map[string]pricing.Quote, error)
}

// QuoteCache short-circuits tokens already priced this hour. Optional.
type QuoteCache interface {
	Get(ctx context.Context, chain, token string, hour time.Time) (float64, bool, error)
	Set(ctx context.Context, chain, token string, hour time.Time, usd float64) error
}

type PriceJob struct {
	api       PriceAPI
	transfers store.TransferRepository
	snapshots store.PriceRepository
	cache     QuoteCache
	logger    *slog.Logger
	now       func() time.Time
}

// PriceResult reports one run. FailedBatches counts API batches skipped
// after failure; the job itself only errors on persistence failures.
type PriceResult struct {
	Chain         model.Chain
	Updated       int
	FailedBatches int
}

func NewPriceJob(api PriceAPI, transfers store.TransferRepository, snapshots store.PriceRepository, cache QuoteCache, logger *slog.Logger) *PriceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceJob{
		api:       api,
		transfers: transfers,
		snapshots: snapshots,
		cache:     cache,
		logger:    logger.With("component", "price_job"),
		now:       time.Now,
	}
}

// Run snapshots USD prices for every distinct token seen on the chain,
// one row per token per hour. A failed API batch is logged and skipped;
// later batches still run.
func (j *PriceJob) Run(ctx context.Context, chain model.Chain) (*PriceResult, error) {
	start := j.now()
	ctx, span := tracing.Tracer("enrich").Start(ctx, "enrich.PriceJob")
	span.SetAttributes(attribute.String("chain", chain.String()))
	defer span.End()
	defer func() {
		metrics.EnrichJobLatency.WithLabelValues(chain.String(), "price").Observe(time.Since(start).Seconds())
	}()

	result := &PriceResult{Chain: chain}

	tokens, err := j.transfers.DistinctTokens(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("list distinct tokens: %w", err)
	}
	if len(tokens) == 0 {
		return result, nil
	}

	hour := j.now().UTC().Truncate(time.Hour)
	tokens = j.filterCached(ctx, chain, tokens, hour)

	batchSize := j.api.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	for begin := 0; begin < len(tokens); begin += batchSize {
		end := begin + batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[begin:end]

		quotes, err := j.api.GetTokenPrices(ctx, chain, batch)
		if err != nil {
			result.FailedBatches++
			metrics.PriceBatchFailures.WithLabelValues(chain.String()).Inc()
			j.logger.Warn("price batch failed; skipping",
				"chain", chain, "tokens", len(batch), "error", err)
			continue
		}

		for _, token := range batch {
			quote, ok := quotes[token]
			if !ok {
				continue
			}
			snapshot := &model.PriceSnapshot{
				Chain:     chain,
				Token:     token,
				Timestamp: hour,
				USD:       quote.USD,
			}
			if err := j.snapshots.Upsert(ctx, snapshot); err != nil {
				return result, fmt.Errorf("upsert snapshot for %s: %w", token, err)
			}
			result.Updated++
			metrics.PriceSnapshotsWritten.WithLabelValues(chain.String()).Inc()

			if j.cache != nil {
				if cacheErr := j.cache.Set(ctx, chain.String(), token, hour, quote.USD); cacheErr != nil {
					j.logger.Warn("quote cache write failed", "token", token, "error", cacheErr)
				}
			}
		}
	}

	j.logger.Info("price job finished",
		"chain", chain,
		"updated", result.Updated,
		"failed_batches", result.FailedBatches,
	)
	return result, nil
}

// filterCached drops tokens that already have a cached quote for this
// hour. Cache errors degrade to "not cached".
func (j *PriceJob) filterCached(ctx context.Context, chain model.Chain, tokens []string, hour time.Time) []string {
	if j.cache == nil {
		return tokens
	}
	remaining := tokens[:0]
	for _, token := range tokens {
		_, hit, err := j.cache.Get(ctx, chain.String(), token, hour)
		if err != nil {
			j.logger.Warn("quote cache read failed", "token", token, "error", err)
		}
		if !hit {
			remaining = append(remaining, token)
		}
	}
	return remaining
}
