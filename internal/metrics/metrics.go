package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters and histograms, partitioned by chain.

var (
	// Ledger RPC client
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total JSON-RPC calls by method and outcome",
	}, []string{"method", "status"})

	RPCRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "rpc",
		Name:      "retries_total",
		Help:      "Total JSON-RPC retry attempts after transient failures",
	}, []string{"method"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total RPC calls delayed by the client rate limiter",
	}, []string{"chain"})

	RPCPaginationTruncations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "rpc",
		Name:      "pagination_truncations_total",
		Help:      "Transfer fetches truncated at the max pagination depth",
	}, []string{"chain"})

	// Sync engine
	SyncWalletsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "syncer",
		Name:      "wallets_synced_total",
		Help:      "Total wallet sync invocations by outcome",
	}, []string{"chain", "outcome"})

	SyncTransfersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "syncer",
		Name:      "transfers_processed_total",
		Help:      "Total transfers persisted by the sync engine",
	}, []string{"chain"})

	SyncRecordsQuarantined = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "syncer",
		Name:      "records_quarantined_total",
		Help:      "Raw records rejected at normalization and skipped",
	}, []string{"chain"})

	SyncLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cogniflow",
		Subsystem: "syncer",
		Name:      "wallet_sync_duration_seconds",
		Help:      "Wallet sync duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"chain"})

	BlocksResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "syncer",
		Name:      "blocks_resolved_total",
		Help:      "Block headers fetched and stored by the resolver",
	}, []string{"chain"})

	// Enrichment jobs
	PriceSnapshotsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "enrich",
		Name:      "price_snapshots_written_total",
		Help:      "Price snapshots upserted",
	}, []string{"chain"})

	PriceBatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "enrich",
		Name:      "price_batch_failures_total",
		Help:      "Price API batches skipped after failure",
	}, []string{"chain"})

	EmbeddingsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "enrich",
		Name:      "embeddings_written_total",
		Help:      "Transfer embeddings upserted",
	}, []string{"chain"})

	EmbeddingBatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogniflow",
		Subsystem: "enrich",
		Name:      "embedding_batch_failures_total",
		Help:      "Embedding API batches skipped after failure",
	}, []string{"chain"})

	EnrichJobLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cogniflow",
		Subsystem: "enrich",
		Name:      "job_duration_seconds",
		Help:      "Enrichment job run duration",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"chain", "job"})

	// Database pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cogniflow",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cogniflow",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cogniflow",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cogniflow",
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from the pool",
	})

	DBPoolWaitDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cogniflow",
		Subsystem: "postgres",
		Name:      "db_pool_wait_duration_seconds",
		Help:      "Cumulative PostgreSQL pool wait duration in seconds",
	})
)
