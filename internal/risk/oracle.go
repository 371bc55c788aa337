// internal/risk/oracle.go
package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrOracleUnavailable signals that the rug-pull oracle could not produce a
// verdict. The engine treats this as non-actionable: skip the candidate,
// never buy on missing data.
var ErrOracleUnavailable = errors.New("rug oracle unavailable")

// Oracle estimates the probability, in percent, that an asset's creator
// will pull liquidity. 0 means safe.
type Oracle interface {
	RugPercent(ctx context.Context, mint string) (float64, error)
}

// HTTPOracle queries a rug-report REST endpoint. This replaces the old
// subprocess-per-check design that scraped a sentinel line off stdout.
type HTTPOracle struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewHTTPOracle(baseURL string, logger *zap.Logger) *HTTPOracle {
	return &HTTPOracle{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		logger:     logger.Named("rug-oracle"),
	}
}

type reportPayload struct {
	// score_normalised is 0-100 where higher means riskier; older reports
	// only carry score on a 0-1000 scale.
	ScoreNormalised *float64 `json:"score_normalised"`
	Score           *float64 `json:"score"`
}

// RugPercent fetches the token report and normalizes it to [0,100].
func (o *HTTPOracle) RugPercent(ctx context.Context, mint string) (float64, error) {
	url := fmt.Sprintf("%s/v1/tokens/%s/report", o.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Warn("Rug oracle request failed", zap.String("mint", mint), zap.Error(err))
		return 0, ErrOracleUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, ErrOracleUnavailable
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, ErrOracleUnavailable
	}

	var report reportPayload
	if err := json.Unmarshal(body, &report); err != nil {
		return 0, ErrOracleUnavailable
	}

	var percent float64
	switch {
	case report.ScoreNormalised != nil:
		percent = *report.ScoreNormalised
	case report.Score != nil:
		percent = *report.Score / 10
	default:
		return 0, ErrOracleUnavailable
	}

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}
