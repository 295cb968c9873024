// Package pricing implements the external token price API client
// (CoinGecko-compatible surface).
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
)

const (
	freeTierBatchSize = 1
	proTierBatchSize  = 50
)

// platforms maps chain identifiers to the price vendor's platform slugs.
var platforms = map[model.Chain]string{
	model.ChainEthereum: "ethereum",
	model.ChainBase:     "base",
	model.ChainPolygon:  "polygon-pos",
	model.ChainArbitrum: "arbitrum-one",
}

type Quote struct {
	USD float64 `json:"usd"`
}

type Config struct {
	BaseURL string
	APIKey  string
	ProTier bool
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	proTier    bool
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("price api base url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		proTier:    cfg.ProTier,
		logger:     logger.With("component", "pricing"),
	}, nil
}

// MaxBatchSize is the vendor's per-request contract address limit for the
// configured key tier.
func (c *Client) MaxBatchSize() int {
	if c.proTier {
		return proTierBatchSize
	}
	return freeTierBatchSize
}

// GetTokenPrices fetches USD quotes for the given token contract addresses.
// Tokens without a usable quote are simply absent from the result.
func (c *Client) GetTokenPrices(ctx context.Context, chain model.Chain, tokens []string) (map[string]Quote, error) {
	if len(tokens) == 0 {
		return map[string]Quote{}, nil
	}
	platform, ok := platforms[chain]
	if !ok {
		return nil, fmt.Errorf("no price platform for chain %s", chain)
	}

	q := url.Values{}
	q.Set("contract_addresses", strings.Join(tokens, ","))
	q.Set("vs_currencies", "usd")
	endpoint := fmt.Sprintf("%s/simple/token_price/%s?%s", c.baseURL, platform, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price api status %d: %s", resp.StatusCode, string(body))
	}

	var raw map[string]map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal quotes: %w", err)
	}

	quotes := make(map[string]Quote, len(raw))
	for addr, fields := range raw {
		usdRaw, ok := fields["usd"]
		if !ok {
			continue
		}
		usd, err := usdRaw.Float64()
		if err != nil || usd <= 0 {
			// Missing or non-positive quote means "no price available".
			continue
		}
		quotes[strings.ToLower(addr)] = Quote{USD: usd}
	}
	return quotes, nil
}
