// internal/engine/manager_test.go
package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/snipekit/solana-sniper/internal/config"
	"github.com/snipekit/solana-sniper/internal/jupiter"
	"github.com/snipekit/solana-sniper/internal/market"
	"github.com/snipekit/solana-sniper/internal/storage/models"
	"github.com/snipekit/solana-sniper/internal/types"
	"github.com/snipekit/solana-sniper/internal/wallet"
)

type fakeTokens struct {
	info *jupiter.TokenInfo
	err  error
}

func (f *fakeTokens) TokenSearch(_ context.Context, _ string) (*jupiter.TokenInfo, error) {
	return f.info, f.err
}

type fakeMarket struct {
	stats    *market.PairStats
	statsErr error
	price    float64
	priceErr error
}

func (f *fakeMarket) PairStats(_ context.Context, _ string) (*market.PairStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeMarket) TokenPrice(_ context.Context, _ string) (float64, error) {
	return f.price, f.priceErr
}

type exitCall struct {
	mint   string
	reason types.ExitReason
}

type fakeExit struct {
	calls []exitCall
}

func (f *fakeExit) Run(_ context.Context, _ *wallet.Wallet, mint string, reason types.ExitReason) *ExitReport {
	f.calls = append(f.calls, exitCall{mint: mint, reason: reason})
	return &ExitReport{Outcome: ExitReclaimVerified, Reason: reason, Passes: 1}
}

type fakeHits struct {
	targets []*models.TargetHit
	stops   []*models.StopLossHit
}

func (f *fakeHits) SaveTargetHit(_ context.Context, hit *models.TargetHit) error {
	f.targets = append(f.targets, hit)
	return nil
}

func (f *fakeHits) SaveStopLossHit(_ context.Context, hit *models.StopLossHit) error {
	f.stops = append(f.stops, hit)
	return nil
}

type fakeOracle struct {
	pct float64
	err error
}

func (f *fakeOracle) RugPercent(_ context.Context, _ string) (float64, error) {
	return f.pct, f.err
}

func testManagerConfig() *config.Config {
	return &config.Config{
		MonitorInterval:      time.Second,
		ConfirmTimeout:       time.Second,
		Risk:                 config.RiskConfig{Baseline: 50, MinScore: 40, MaxRugPercent: 55, CrashThreshold: -40, MinTxCount: 100},
		Slippage:             types.DefaultSlippageTiers(),
		Priority:             types.DefaultPriorityProfile(),
		TakeProfitMultiplier: 2.0,
		BuyAmountSol:         0.01,
	}
}

func healthyTokenInfo(price float64) *jupiter.TokenInfo {
	return &jupiter.TokenInfo{
		ID:       "token",
		USDPrice: price,
		Audit: &jupiter.Audit{
			MintAuthorityDisabled:    true,
			FreezeAuthorityDisabled:  true,
			TopHoldersPercentage:     15,
			SnipersHoldingPercentage: 5,
		},
	}
}

func healthyPairStats() *market.PairStats {
	return &market.PairStats{
		PriceUSD:     1.0,
		LiquidityUSD: 10_000,
		MarketCap:    100_000,
		BuysTotal:    300,
		SellsTotal:   200,
		Buys24h:      80,
		Sells24h:     40,
	}
}

type managerFixture struct {
	manager    *Manager
	store      *PositionStore
	exec       *fakeSwapExecutor
	exit       *fakeExit
	tokens     *fakeTokens
	market     *fakeMarket
	hits       *fakeHits
	ledger     *fakeLedger
	candidates chan string
}

func newManagerFixture(t *testing.T, cfg *config.Config, users StaticUsers) *managerFixture {
	t.Helper()
	f := &managerFixture{
		store:      NewPositionStore(),
		exec:       &fakeSwapExecutor{outcome: types.SwapOutcome{Succeeded: true, Signature: solana.Signature{1}}},
		exit:       &fakeExit{},
		tokens:     &fakeTokens{info: healthyTokenInfo(1.0)},
		market:     &fakeMarket{stats: healthyPairStats(), price: 1.0},
		hits:       &fakeHits{},
		ledger:     &fakeLedger{},
		candidates: make(chan string, 8),
	}
	secret := solana.NewWallet().PrivateKey.String()
	f.manager = NewManager(cfg, ManagerDeps{
		Store:    f.store,
		Executor: f.exec,
		Exit:     f.exit,
		Tokens:   f.tokens,
		Market:   f.market,
		Hits:     f.hits,
		Users:    users,
		Fanout:   NewFanout(zaptest.NewLogger(t)),
		Ledger:   f.ledger,
		Secrets: func(ref string) (string, error) {
			if ref == "bad" {
				return "", errors.New("secret missing")
			}
			return secret, nil
		},
		Candidates: f.candidates,
	}, zaptest.NewLogger(t))
	return f
}

func singleActiveUser() StaticUsers {
	return StaticUsers{{
		OwnerID:          "u1",
		SecretRef:        "key",
		BuyAmountSol:     0.01,
		TargetMultiplier: 2.0,
		Active:           true,
	}}
}

func heldPosition(owner string) *types.Position {
	return &types.Position{
		Mint:        testMint,
		OwnerID:     owner,
		EntryPrice:  1.0,
		TargetPrice: 2.0,
		Status:      types.StatusHeld,
		OpenedAt:    time.Now(),
	}
}

func TestManager_EmergencyBeatsTargetHit(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	f.store.Add(heldPosition("u1"))

	// Price sits well above target AND a window crashed past the threshold;
	// the crash must win.
	info := healthyTokenInfo(2.5)
	info.Stats1h = &jupiter.WindowStats{PriceChange: -45}
	f.tokens.info = info

	f.manager.monitorPass(context.Background())

	require.Len(t, f.exit.calls, 1)
	assert.Equal(t, types.ExitEmergency, f.exit.calls[0].reason)
	assert.Len(t, f.hits.stops, 1)
	assert.Empty(t, f.hits.targets)
	assert.Equal(t, 0, f.store.Len(), "position retires once the exit sequence ran")
}

func TestManager_TargetHitRecordsProfit(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	f.store.Add(heldPosition("u1"))
	f.tokens.info = healthyTokenInfo(2.5)

	f.manager.monitorPass(context.Background())

	require.Len(t, f.exit.calls, 1)
	assert.Equal(t, types.ExitTargetHit, f.exit.calls[0].reason)
	require.Len(t, f.hits.targets, 1)
	assert.InDelta(t, 150.0, f.hits.targets[0].ProfitPercent, 0.001)
}

func TestManager_BelowTargetHolds(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	f.store.Add(heldPosition("u1"))
	f.tokens.info = healthyTokenInfo(1.5)

	f.manager.monitorPass(context.Background())

	assert.Empty(t, f.exit.calls)
	assert.Equal(t, 1, f.store.Len())
}

func TestManager_BothFeedsDownHoldsPosition(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	f.store.Add(heldPosition("u1"))
	f.tokens.err = errors.New("feed down")
	f.market.priceErr = errors.New("feed down")

	f.manager.monitorPass(context.Background())

	assert.Empty(t, f.exit.calls, "a blind cycle must never trigger an exit")
	assert.Equal(t, 1, f.store.Len())
}

func TestManager_FallbackPriceTriggersTarget(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	f.store.Add(heldPosition("u1"))
	f.tokens.err = errors.New("feed down")
	f.market.price = 2.5

	f.manager.monitorPass(context.Background())

	require.Len(t, f.exit.calls, 1)
	assert.Equal(t, types.ExitTargetHit, f.exit.calls[0].reason)
}

func TestManager_CandidateBuyOpensPositionPerUser(t *testing.T) {
	users := StaticUsers{
		{OwnerID: "u1", SecretRef: "key", BuyAmountSol: 0.01, TargetMultiplier: 2.0, Active: true},
		{OwnerID: "u2", SecretRef: "bad", BuyAmountSol: 0.01, TargetMultiplier: 2.0, Active: true},
		{OwnerID: "u3", SecretRef: "key", BuyAmountSol: 0.02, TargetMultiplier: 3.0, Active: true},
	}
	f := newManagerFixture(t, testManagerConfig(), users)

	f.candidates <- testMint
	f.manager.entryPass(context.Background())

	// u2's secret cannot be resolved; u1 and u3 must still get positions.
	assert.Equal(t, 2, f.store.Len())
	_, ok := f.store.Get("u1", testMint)
	assert.True(t, ok)
	_, ok = f.store.Get("u2", testMint)
	assert.False(t, ok)
	pos, ok := f.store.Get("u3", testMint)
	require.True(t, ok)
	assert.InDelta(t, 3.0, pos.TargetPrice, 0.001, "per-user multiplier applies")
	assert.Equal(t, types.StatusHeld, pos.Status)
}

func TestManager_HoneypotVetoBlocksBuy(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	stats := healthyPairStats()
	stats.SellsTotal = 0
	f.market.stats = stats

	f.manager.handleCandidate(context.Background(), testMint)

	assert.Empty(t, f.exec.intents)
	assert.Equal(t, 0, f.store.Len())
}

func TestManager_LowScoreBlocksBuy(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	info := healthyTokenInfo(1.0)
	info.Audit = &jupiter.Audit{TopHoldersPercentage: 90, SnipersHoldingPercentage: 80}
	f.tokens.info = info
	stats := healthyPairStats()
	stats.LiquidityUSD = 100
	stats.Buys24h, stats.Sells24h = 3, 2
	f.market.stats = stats

	f.manager.handleCandidate(context.Background(), testMint)

	assert.Empty(t, f.exec.intents)
}

func TestManager_NoRiskDataBlocksBuy(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	f.tokens.err = errors.New("feed down")
	f.market.statsErr = errors.New("feed down")

	f.manager.handleCandidate(context.Background(), testMint)

	assert.Empty(t, f.exec.intents)
}

func TestManager_OracleGate(t *testing.T) {
	tests := []struct {
		name    string
		oracle  *fakeOracle
		wantBuy bool
	}{
		{"unavailable oracle fails closed", &fakeOracle{err: errors.New("down")}, false},
		{"high rug probability blocks", &fakeOracle{pct: 80}, false},
		{"low rug probability passes", &fakeOracle{pct: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
			f.manager.deps.Oracle = tt.oracle

			f.manager.handleCandidate(context.Background(), testMint)

			if tt.wantBuy {
				assert.NotEmpty(t, f.exec.intents)
			} else {
				assert.Empty(t, f.exec.intents)
			}
		})
	}
}

func TestManager_MintSuffixGate(t *testing.T) {
	cfg := testManagerConfig()
	cfg.MintSuffix = "pump"
	f := newManagerFixture(t, cfg, singleActiveUser())

	f.manager.handleCandidate(context.Background(), "C9dY3AqWx4mintWithoutTheSuffix")

	assert.Empty(t, f.exec.intents)
}

func TestManager_UnconfirmedBuyOpensNoPosition(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	f.ledger.confirmed = "failed"

	f.manager.handleCandidate(context.Background(), testMint)

	require.Len(t, f.exec.intents, 1)
	assert.Equal(t, 0, f.store.Len(), "an on-chain failure must not open a position")
}

func TestManager_DuplicateBuySkipped(t *testing.T) {
	f := newManagerFixture(t, testManagerConfig(), singleActiveUser())
	f.store.Add(heldPosition("u1"))

	f.manager.handleCandidate(context.Background(), testMint)

	assert.Empty(t, f.exec.intents, "an open position on the mint suppresses re-entry")
}
