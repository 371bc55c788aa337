// internal/market/dexscreener.go
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0"
)

// ErrNoPrice is returned when no trading pair is known for the token.
var ErrNoPrice = errors.New("no price data available")

// Client is the secondary market-data source: price fallback, honeypot
// inputs, and the latest-profiles discovery feed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: baseURL,
		logger:  logger.Named("dexscreener"),
	}
}

type pairTxns struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type pairPayload struct {
	BaseToken struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
	Txns      map[string]pairTxns `json:"txns"`
}

// PairStats summarizes the token's primary pair for risk evaluation.
type PairStats struct {
	Name           string
	Symbol         string
	PriceUSD       float64
	LiquidityUSD   float64
	MarketCap      float64
	BuysTotal      int // summed over h1, h6, h24
	SellsTotal     int
	Buys24h        int
	Sells24h       int
}

// Honeypot infers the buy-only trap signal: an asset with zero buys or zero
// sells across every observed window cannot be exited.
func (s *PairStats) Honeypot() bool {
	return s.BuysTotal == 0 || s.SellsTotal == 0
}

// LiquidityToMarketCapPct returns liquidity as a percentage of market cap,
// or 0 when market cap is unknown.
func (s *PairStats) LiquidityToMarketCapPct() float64 {
	if s.MarketCap == 0 {
		return 0
	}
	return s.LiquidityUSD / s.MarketCap * 100
}

// TxCount24h is the illiquidity proxy used by the risk scorer.
func (s *PairStats) TxCount24h() int {
	return s.Buys24h + s.Sells24h
}

// PairStats fetches the first trading pair for the mint.
func (c *Client) PairStats(ctx context.Context, mint string) (*PairStats, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/token-pairs/v1/solana/%s", c.baseURL, mint))
	if err != nil {
		return nil, err
	}

	var pairs []pairPayload
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode pair data: %w", err)
	}
	if len(pairs) == 0 {
		return nil, ErrNoPrice
	}

	pair := pairs[0]
	stats := &PairStats{
		Name:         pair.BaseToken.Name,
		Symbol:       pair.BaseToken.Symbol,
		LiquidityUSD: pair.Liquidity.USD,
		MarketCap:    pair.MarketCap,
	}
	if stats.MarketCap == 0 {
		stats.MarketCap = pair.FDV
	}
	if pair.PriceUSD != "" {
		stats.PriceUSD, _ = strconv.ParseFloat(pair.PriceUSD, 64)
	}
	for _, window := range []string{"h1", "h6", "h24"} {
		txns := pair.Txns[window]
		stats.BuysTotal += txns.Buys
		stats.SellsTotal += txns.Sells
	}
	stats.Buys24h = pair.Txns["h24"].Buys
	stats.Sells24h = pair.Txns["h24"].Sells
	return stats, nil
}

type tokensPayload struct {
	Pairs []pairPayload `json:"pairs"`
}

// TokenPrice returns the current USD price from the token's first pair.
// Used as the fallback when the aggregator's token search is unavailable.
func (c *Client) TokenPrice(ctx context.Context, mint string) (float64, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, mint))
	if err != nil {
		return 0, err
	}

	var payload tokensPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to decode token data: %w", err)
	}
	if len(payload.Pairs) == 0 || payload.Pairs[0].PriceUSD == "" {
		return 0, ErrNoPrice
	}

	price, err := strconv.ParseFloat(payload.Pairs[0].PriceUSD, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", payload.Pairs[0].PriceUSD, err)
	}
	return price, nil
}

// Profile is one entry of the latest-token-profiles feed.
type Profile struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
}

// LatestProfiles fetches the newest token profiles across all chains; the
// scanner filters them down to candidates.
func (c *Client) LatestProfiles(ctx context.Context) ([]Profile, error) {
	body, err := c.get(ctx, c.baseURL+"/token-profiles/latest/v1")
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return profiles, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
