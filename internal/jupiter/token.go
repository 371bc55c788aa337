// internal/jupiter/token.go
package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrTokenNotFound is returned when the token search yields no entries.
var ErrTokenNotFound = errors.New("token not found")

// Audit is the issuer-safety section of the token search response.
type Audit struct {
	MintAuthorityDisabled    bool    `json:"mintAuthorityDisabled"`
	FreezeAuthorityDisabled  bool    `json:"freezeAuthorityDisabled"`
	TopHoldersPercentage     float64 `json:"topHoldersPercentage"`
	SnipersHoldingPercentage float64 `json:"snipersHoldingPercentage"`
}

// WindowStats holds market activity for one rolling window. A nil window in
// TokenInfo means the source reported nothing for it: absence is "no
// signal", never zero.
type WindowStats struct {
	PriceChange float64 `json:"priceChange"`
	NumBuys     int     `json:"numBuys"`
	NumSells    int     `json:"numSells"`
}

// TokenInfo is the aggregator's view of one token.
type TokenInfo struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	USDPrice    float64      `json:"usdPrice"`
	MarketCap   float64      `json:"mcap"`
	Liquidity   float64      `json:"liquidity"`
	HolderCount int          `json:"holderCount"`
	Audit       *Audit       `json:"audit"`
	Stats5m     *WindowStats `json:"stats5m"`
	Stats1h     *WindowStats `json:"stats1h"`
	Stats6h     *WindowStats `json:"stats6h"`
	Stats24h    *WindowStats `json:"stats24h"`
}

// Windows returns the present rolling windows in fixed order.
func (t *TokenInfo) Windows() []*WindowStats {
	return []*WindowStats{t.Stats5m, t.Stats1h, t.Stats6h, t.Stats24h}
}

// TokenSearch looks up a token by mint address.
func (c *Client) TokenSearch(ctx context.Context, mint string) (*TokenInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()

	body, err := c.get(ctx, c.tokenURL+"?query="+url.QueryEscape(mint))
	if err != nil {
		return nil, fmt.Errorf("token search failed: %w", err)
	}

	var tokens []TokenInfo
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token search response: %w", err)
	}
	if len(tokens) == 0 {
		return nil, ErrTokenNotFound
	}
	return &tokens[0], nil
}
