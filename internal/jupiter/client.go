// internal/jupiter/client.go
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	quoteTimeout = 10 * time.Second
	swapTimeout  = 20 * time.Second
	userAgent    = "Mozilla/5.0"
)

// Client talks to the Jupiter aggregator HTTP API. The aggregator both
// quotes the swap and authors the transaction; the caller only signs it.
type Client struct {
	httpClient *http.Client
	quoteURL   string
	swapURL    string
	tokenURL   string
	logger     *zap.Logger
}

// NewClient creates an aggregator client with connection reuse tuned for
// polling workloads.
func NewClient(quoteURL, swapURL, tokenURL string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: swapTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		quoteURL: quoteURL,
		swapURL:  swapURL,
		tokenURL: tokenURL,
		logger:   logger.Named("jupiter"),
	}
}

// QuoteResponse carries the raw quote payload. It is passed back verbatim in
// the swap-build request; the engine only inspects the error and outAmount
// fields.
type QuoteResponse struct {
	Raw       json.RawMessage
	OutAmount uint64
}

type quoteEnvelope struct {
	Error     string `json:"error"`
	OutAmount string `json:"outAmount"`
}

// Quote requests a quote for swapping amount of inputMint into outputMint.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint64) (*QuoteResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()

	url := fmt.Sprintf("%s?inputMint=%s&outputMint=%s&amount=%d&slippageBps=%d",
		c.quoteURL, inputMint, outputMint, amount, slippageBps)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}

	var envelope quoteEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("aggregator rejected quote: %s", envelope.Error)
	}

	var outAmount uint64
	if envelope.OutAmount != "" {
		outAmount, err = strconv.ParseUint(envelope.OutAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid outAmount %q: %w", envelope.OutAmount, err)
		}
	}

	return &QuoteResponse{Raw: body, OutAmount: outAmount}, nil
}

type swapRequest struct {
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
	UserPublicKey                 string          `json:"userPublicKey"`
	WrapAndUnwrapSol              bool            `json:"wrapAndUnwrapSol"`
	ComputeUnitPriceMicroLamports uint64          `json:"computeUnitPriceMicroLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error"`
}

// BuildSwap asks the aggregator to build an unsigned transaction for the
// given quote, addressed to owner. Returns the serialized transaction bytes.
func (c *Client) BuildSwap(ctx context.Context, quote *QuoteResponse, owner solana.PublicKey, priorityFee uint64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, swapTimeout)
	defer cancel()

	payload, err := json.Marshal(swapRequest{
		QuoteResponse:                 quote.Raw,
		UserPublicKey:                 owner.String(),
		WrapAndUnwrapSol:              true,
		ComputeUnitPriceMicroLamports: priorityFee,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.swapURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read swap response: %w", err)
	}

	var swap swapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}
	if swap.SwapTransaction == "" {
		if swap.Error != "" {
			return nil, fmt.Errorf("aggregator returned no transaction: %s", swap.Error)
		}
		return nil, fmt.Errorf("aggregator returned no transaction")
	}

	txBytes, err := base64.StdEncoding.DecodeString(swap.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction payload: %w", err)
	}
	return txBytes, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
