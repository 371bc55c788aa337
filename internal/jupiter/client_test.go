// internal/jupiter/client_test.go
package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/quote", server.URL+"/swap", server.URL+"/search", zaptest.NewLogger(t))
}

func TestQuote_CarriesRawPayloadAndOutAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "IN", q.Get("inputMint"))
		assert.Equal(t, "OUT", q.Get("outputMint"))
		assert.Equal(t, "1000", q.Get("amount"))
		assert.Equal(t, "500", q.Get("slippageBps"))
		w.Write([]byte(`{"outAmount": "123456", "routePlan": []}`))
	})

	quote, err := client.Quote(context.Background(), "IN", "OUT", 1000, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), quote.OutAmount)
	assert.JSONEq(t, `{"outAmount": "123456", "routePlan": []}`, string(quote.Raw))
}

func TestQuote_AggregatorError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": "No routes found"}`))
	})

	_, err := client.Quote(context.Background(), "IN", "OUT", 1000, 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No routes found")
}

func TestBuildSwap_EchoesQuoteAndSetsPriorityFee(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	txBytes := []byte{1, 2, 3, 4}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap", r.URL.Path)
		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `{"outAmount": "9"}`, string(req["quoteResponse"]))
		assert.JSONEq(t, `"`+owner.String()+`"`, string(req["userPublicKey"]))
		assert.JSONEq(t, `true`, string(req["wrapAndUnwrapSol"]))
		assert.JSONEq(t, `50000`, string(req["computeUnitPriceMicroLamports"]))

		resp := map[string]string{"swapTransaction": base64.StdEncoding.EncodeToString(txBytes)}
		json.NewEncoder(w).Encode(resp)
	})

	quote := &QuoteResponse{Raw: json.RawMessage(`{"outAmount": "9"}`), OutAmount: 9}
	got, err := client.BuildSwap(context.Background(), quote, owner, 50_000)
	require.NoError(t, err)
	assert.Equal(t, txBytes, got)
}

func TestBuildSwap_NoTransactionInResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": "quote expired"}`))
	})

	quote := &QuoteResponse{Raw: json.RawMessage(`{}`)}
	_, err := client.BuildSwap(context.Background(), quote, solana.NewWallet().PublicKey(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quote expired")
}

func TestTokenSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "MINT", r.URL.Query().Get("query"))
		w.Write([]byte(`[{
			"id": "MINT",
			"symbol": "TT",
			"usdPrice": 0.5,
			"mcap": 250000,
			"audit": {"mintAuthorityDisabled": true, "topHoldersPercentage": 22.5},
			"stats1h": {"priceChange": -12.5, "numBuys": 40, "numSells": 10}
		}]`))
	})

	info, err := client.TokenSearch(context.Background(), "MINT")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, info.USDPrice, 1e-9)
	require.NotNil(t, info.Audit)
	assert.True(t, info.Audit.MintAuthorityDisabled)
	assert.InDelta(t, 22.5, info.Audit.TopHoldersPercentage, 1e-9)
	require.NotNil(t, info.Stats1h)
	assert.InDelta(t, -12.5, info.Stats1h.PriceChange, 1e-9)
	assert.Nil(t, info.Stats24h, "absent windows stay nil, not zero")
}

func TestTokenSearch_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.TokenSearch(context.Background(), "MINT")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
