// internal/risk/oracle_test.go
package risk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestOracle(t *testing.T, handler http.HandlerFunc) *HTTPOracle {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPOracle(server.URL, zaptest.NewLogger(t))
}

func TestRugPercent_NormalisedScore(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tokens/MINT/report", r.URL.Path)
		w.Write([]byte(`{"score_normalised": 37.5}`))
	})

	pct, err := oracle.RugPercent(context.Background(), "MINT")
	require.NoError(t, err)
	assert.InDelta(t, 37.5, pct, 0.001)
}

func TestRugPercent_LegacyScoreScaledDown(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"score": 420}`))
	})

	pct, err := oracle.RugPercent(context.Background(), "MINT")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, pct, 0.001)
}

func TestRugPercent_ClampedToRange(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"score_normalised": 250}`))
	})

	pct, err := oracle.RugPercent(context.Background(), "MINT")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pct, 0.001)
}

func TestRugPercent_UnavailableCases(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"no score fields", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"mint": "MINT"}`))
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`not json`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newTestOracle(t, tt.handler)
			_, err := oracle.RugPercent(context.Background(), "MINT")
			assert.ErrorIs(t, err, ErrOracleUnavailable)
		})
	}
}
