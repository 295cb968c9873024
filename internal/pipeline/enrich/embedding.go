package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/devaanshsinha/cogniflow/internal/metrics"
	"github.com/devaanshsinha/cogniflow/internal/store"
	"github.com/devaanshsinha/cogniflow/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultEmbedBatchSize = 32
	maxEmbedBatchSize     = 128
	defaultMaxRecords     = 500
)

// EmbeddingAPI is the external embedding vendor surface: one vector per
// input text, in request order.
type EmbeddingAPI interface {
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
}

type EmbeddingJobOptions struct {
	// Dimension is the target vector length; returned vectors are truncated
	// or zero-padded to match.
	Dimension int
	// BatchSize texts per API call; capped at maxEmbedBatchSize.
	BatchSize int
	// MaxRecords caps how many unembedded transfers one run picks up.
	MaxRecords int
}

type EmbeddingJob struct {
	api        EmbeddingAPI
	transfers  store.TransferRepository
	embeddings store.EmbeddingRepository
	opts       EmbeddingJobOptions
	logger     *slog.Logger
	now        func() time.Time
}

// EmbeddingResult reports one run. Batches counts API batches attempted,
// FailedBatches the subset skipped after failure.
type EmbeddingResult struct {
	Chain         model.Chain
	Processed     int
	Batches       int
	FailedBatches int
}

func NewEmbeddingJob(api EmbeddingAPI, transfers store.TransferRepository, embeddings store.EmbeddingRepository, opts EmbeddingJobOptions, logger *slog.Logger) *EmbeddingJob {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultEmbedBatchSize
	}
	if opts.BatchSize > maxEmbedBatchSize {
		opts.BatchSize = maxEmbedBatchSize
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = defaultMaxRecords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingJob{
		api:        api,
		transfers:  transfers,
		embeddings: embeddings,
		opts:       opts,
		logger:     logger.With("component", "embedding_job"),
		now:        time.Now,
	}
}

// Run embeds transfers that have no embedding row yet, most recent first.
// A failed API batch is logged and skipped; later batches still run.
func (j *EmbeddingJob) Run(ctx context.Context, chain model.Chain) (*EmbeddingResult, error) {
	start := j.now()
	ctx, span := tracing.Tracer("enrich").Start(ctx, "enrich.EmbeddingJob")
	span.SetAttributes(attribute.String("chain", chain.String()))
	defer span.End()
	defer func() {
		metrics.EnrichJobLatency.WithLabelValues(chain.String(), "embedding").Observe(time.Since(start).Seconds())
	}()

	result := &EmbeddingResult{Chain: chain}

	pending, err := j.transfers.ListUnembedded(ctx, chain, j.opts.MaxRecords)
	if err != nil {
		return nil, fmt.Errorf("list unembedded transfers: %w", err)
	}
	if len(pending) == 0 {
		return result, nil
	}

	for begin := 0; begin < len(pending); begin += j.opts.BatchSize {
		end := begin + j.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[begin:end]
		result.Batches++

		texts := make([]string, len(batch))
		for i, t := range batch {
			texts[i] = Describe(t)
		}

		vectors, err := j.api.Embed(ctx, texts)
		if err != nil {
			result.FailedBatches++
			metrics.EmbeddingBatchFailures.WithLabelValues(chain.String()).Inc()
			j.logger.Warn("embedding batch failed; skipping",
				"chain", chain, "size", len(batch), "error", err)
			continue
		}
		if len(vectors) != len(batch) {
			result.FailedBatches++
			metrics.EmbeddingBatchFailures.WithLabelValues(chain.String()).Inc()
			j.logger.Warn("embedding batch returned wrong vector count; skipping",
				"chain", chain, "expected", len(batch), "got", len(vectors))
			continue
		}

		for i, t := range batch {
			metadata, err := json.Marshal(model.EmbeddingMetadata{
				Chain:       t.Chain.String(),
				Token:       t.Token,
				Symbol:      t.Symbol,
				Amount:      t.AmountDec,
				FromAddress: t.FromAddress,
				ToAddress:   t.ToAddress,
				TxHash:      t.TxHash,
				BlockNumber: t.BlockNumber,
			})
			if err != nil {
				return result, fmt.Errorf("marshal metadata for %s: %w", t.ID, err)
			}

			row := &model.Embedding{
				ID:       t.ID,
				Chain:    t.Chain,
				Vector:   FitDimension(vectors[i], j.opts.Dimension),
				Metadata: metadata,
			}
			if err := j.embeddings.Upsert(ctx, row); err != nil {
				return result, fmt.Errorf("upsert embedding %s: %w", t.ID, err)
			}
			result.Processed++
			metrics.EmbeddingsWritten.WithLabelValues(chain.String()).Inc()
		}
	}

	j.logger.Info("embedding job finished",
		"chain", chain,
		"processed", result.Processed,
		"batches", result.Batches,
		"failed_batches", result.FailedBatches,
	)
	return result, nil
}

// FitDimension forces a vector to the target length: longer vectors are
// truncated, shorter ones right-padded with zeros. A non-positive target
// returns the vector unchanged.
func FitDimension(vec []float64, target int) []float64 {
	if target <= 0 || len(vec) == target {
		return vec
	}
	if len(vec) > target {
		return vec[:target]
	}
	padded := make([]float64, target)
	copy(padded, vec)
	return padded
}
