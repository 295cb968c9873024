package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/chain/ratelimit"
	"github.com/devaanshsinha/cogniflow/internal/metrics"
	"github.com/devaanshsinha/cogniflow/internal/pipeline/retry"
)

const (
	defaultMaxAttempts  = 5
	defaultBackoffBase  = 200 * time.Millisecond
	defaultBackoffMax   = 5 * time.Second
	defaultMaxPages     = 10
	defaultPageSize     = 1000
	defaultCallTimeout  = 30 * time.Second
	supportedCategoryID = "erc20"
)

// LedgerClient is the remote ledger surface the pipeline depends on.
type LedgerClient interface {
	GetBlockNumber(ctx context.Context) (int64, error)
	GetBlockByNumber(ctx context.Context, blockNumber int64) (*Block, error)
	GetAssetTransfers(ctx context.Context, query AssetTransfersQuery) ([]AssetTransfer, error)
}

type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxPages    int
	PageSize    int
	Timeout     time.Duration
}

// Client is a JSON-RPC client with retry and backoff built in. Request ids
// are scoped to the instance so independently configured clients never
// share a counter.
type Client struct {
	httpClient  *http.Client
	rpcURL      string
	chain       string
	requestID   atomic.Int64
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	maxPages    int
	pageSize    int

	// injected in tests
	sleepFn func(ctx context.Context, d time.Duration) error
	randFn  func() float64
}

func NewClient(rpcURL, chain string, limiter *ratelimit.Limiter, logger *slog.Logger, opts Options) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCallTimeout
	}

	return &Client{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		rpcURL:      rpcURL,
		chain:       chain,
		limiter:     limiter,
		logger:      logger.With("component", "rpc", "chain", chain),
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		maxPages:    opts.MaxPages,
		pageSize:    opts.PageSize,
		randFn:      rand.Float64,
	}
}

// call issues one JSON-RPC method call, retrying transient failures with
// full-jitter exponential backoff. Terminal failures surface immediately;
// exhausting attempts surfaces the last observed error.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result, err := c.doCall(ctx, method, params)
		if err == nil {
			metrics.RPCCallsTotal.WithLabelValues(method, "ok").Inc()
			return result, nil
		}
		metrics.RPCCallsTotal.WithLabelValues(method, "error").Inc()
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		decision := retry.Classify(err)
		if !decision.IsTransient() {
			return nil, err
		}
		if attempt == c.maxAttempts {
			break
		}

		metrics.RPCRetriesTotal.WithLabelValues(method).Inc()
		delay := retry.Backoff(attempt, c.backoffBase, c.backoffMax, c.randFn)
		c.logger.Warn("rpc call failed; retrying",
			"method", method,
			"attempt", attempt,
			"classification_reason", decision.Reason,
			"delay", delay.String(),
			"error", err,
		)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}
	return nil, fmt.Errorf("%s: retries exhausted after %d attempts: %w", method, c.maxAttempts, lastErr)
}

func (c *Client) doCall(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      int(c.requestID.Add(1)),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if c.sleepFn != nil {
		return c.sleepFn(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
