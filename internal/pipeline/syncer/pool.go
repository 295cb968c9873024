package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// SyncFunc is the per-wallet sync operation the pool fans out.
type SyncFunc func(ctx context.Context, w *model.Wallet) (*Result, error)

// Pool runs wallet syncs with bounded concurrency while enforcing at most
// one in-flight sync per wallet. One wallet's failure never prevents the
// others from being attempted.
type Pool struct {
	sync    SyncFunc
	workers int
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Summary aggregates one pool run. Failures are reported per wallet rather
// than aborting the run.
type Summary struct {
	Synced    int
	Skipped   int
	Failed    int
	Processed int
	Errors    []error
}

func NewPool(syncFn SyncFunc, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sync:     syncFn,
		workers:  workers,
		logger:   logger.With("component", "sync_pool"),
		inFlight: make(map[string]struct{}),
	}
}

func (p *Pool) Run(ctx context.Context, wallets []model.Wallet) Summary {
	var (
		summaryMu sync.Mutex
		summary   Summary
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := range wallets {
		w := wallets[i]
		key := walletKey(w.Chain, w.Address)
		if !p.tryAcquire(key) {
			p.logger.Warn("sync already in flight; skipping wallet",
				"chain", w.Chain, "address", w.Address)
			continue
		}

		g.Go(func() error {
			defer p.release(key)

			if gCtx.Err() != nil {
				return nil
			}

			result, err := p.sync(gCtx, &w)
			summaryMu.Lock()
			defer summaryMu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors,
					fmt.Errorf("sync wallet %s/%s: %w", w.Chain, w.Address, err))
				p.logger.Error("wallet sync failed",
					"chain", w.Chain, "address", w.Address, "error", err)
				return nil
			}
			if result.Skipped {
				summary.Skipped++
			} else {
				summary.Synced++
			}
			summary.Processed += result.Processed
			return nil
		})
	}

	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()
	return summary
}

func (p *Pool) tryAcquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *Pool) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, key)
}

func walletKey(chain model.Chain, address string) string {
	return string(chain) + ":" + strings.ToLower(address)
}
