// internal/engine/manager.go
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	chain "github.com/snipekit/solana-sniper/internal/blockchain/solana"
	"github.com/snipekit/solana-sniper/internal/config"
	"github.com/snipekit/solana-sniper/internal/jupiter"
	"github.com/snipekit/solana-sniper/internal/market"
	"github.com/snipekit/solana-sniper/internal/risk"
	"github.com/snipekit/solana-sniper/internal/storage/models"
	"github.com/snipekit/solana-sniper/internal/types"
	"github.com/snipekit/solana-sniper/internal/wallet"
)

// TokenInfoSource is the primary price-and-audit feed.
type TokenInfoSource interface {
	TokenSearch(ctx context.Context, mint string) (*jupiter.TokenInfo, error)
}

// MarketSource is the secondary market feed used for the risk gate and as a
// price fallback when the primary feed is down.
type MarketSource interface {
	PairStats(ctx context.Context, mint string) (*market.PairStats, error)
	TokenPrice(ctx context.Context, mint string) (float64, error)
}

// ExitRunner runs the sell-and-reclaim sequence for one position.
type ExitRunner interface {
	Run(ctx context.Context, signer *wallet.Wallet, mint string, reason types.ExitReason) *ExitReport
}

// Ledger is the chain surface the manager needs after a buy: confirmation
// polling plus the resulting token-account balance.
type Ledger interface {
	AwaitConfirmation(ctx context.Context, sig solana.Signature, timeout time.Duration) (*chain.SignatureStatus, error)
	GetTokenAccountHolding(ctx context.Context, owner, mint solana.PublicKey) (*chain.AccountHolding, error)
}

// HitRecorder appends take-profit and stop-loss history.
type HitRecorder interface {
	SaveTargetHit(ctx context.Context, hit *models.TargetHit) error
	SaveStopLossHit(ctx context.Context, hit *models.StopLossHit) error
}

// UserDirectory lists the accounts the engine trades for.
type UserDirectory interface {
	ActiveUsers(ctx context.Context) ([]*models.User, error)
	GetUser(ctx context.Context, ownerID string) (*models.User, error)
}

// SecretResolver turns a stored secret reference into the signing key
// material. The resolved value is held only inside wallet objects and is
// never logged or persisted.
type SecretResolver func(ref string) (string, error)

// StaticUsers is an in-memory UserDirectory for single-account runs.
type StaticUsers []*models.User

func (u StaticUsers) ActiveUsers(_ context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(u))
	for _, user := range u {
		if user.Active {
			out = append(out, user)
		}
	}
	return out, nil
}

func (u StaticUsers) GetUser(_ context.Context, ownerID string) (*models.User, error) {
	for _, user := range u {
		if user.OwnerID == ownerID {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user %s not found", ownerID)
}

// ManagerDeps bundles the collaborators the manager drives.
type ManagerDeps struct {
	Store      *PositionStore
	Executor   SwapExecutor
	Exit       ExitRunner
	Tokens     TokenInfoSource
	Market     MarketSource
	Oracle     risk.Oracle // optional
	Hits       HitRecorder // optional
	Users      UserDirectory
	Fanout     *Fanout
	Ledger     Ledger
	Secrets    SecretResolver
	Candidates <-chan string
}

// Manager owns the position lifecycle: it drains discovery candidates through
// the entry gate, fans buys out across users, watches held positions and
// hands triggered ones to the exit protocol. It is the only writer of
// position state.
type Manager struct {
	cfg    *config.Config
	deps   ManagerDeps
	logger *zap.Logger

	walletMu sync.Mutex
	wallets  map[string]*wallet.Wallet
}

func NewManager(cfg *config.Config, deps ManagerDeps, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.Named("manager"),
		wallets: make(map[string]*wallet.Wallet),
	}
}

// Run drives the engine until the context is cancelled. Exits are evaluated
// before new entries so a crashing market is never answered with more buys.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	m.logger.Info("Position manager started",
		zap.Duration("interval", m.cfg.MonitorInterval),
		zap.Float64("crash_threshold", m.cfg.Risk.CrashThreshold))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Position manager stopped", zap.Int("open_positions", m.deps.Store.Len()))
			return ctx.Err()
		case <-ticker.C:
			m.monitorPass(ctx)
			m.entryPass(ctx)
		}
	}
}

// entryPass drains whatever candidates discovery queued since the last tick.
func (m *Manager) entryPass(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case mint := <-m.deps.Candidates:
			m.handleCandidate(ctx, mint)
		default:
			return
		}
	}
}

func (m *Manager) handleCandidate(ctx context.Context, mint string) {
	log := m.logger.With(zap.String("mint", mint))

	assessment, ok := m.assess(ctx, mint, log)
	if !ok {
		return
	}

	users, err := m.deps.Users.ActiveUsers(ctx)
	if err != nil {
		log.Error("Failed to load active users", zap.Error(err))
		return
	}
	if len(users) == 0 {
		return
	}

	outcomes := m.deps.Fanout.Apply(ctx, "buy", users, func(ctx context.Context, user *models.User) error {
		return m.buyForUser(ctx, user, mint)
	})

	if AnySucceeded(outcomes) {
		log.Info("Candidate bought",
			zap.Int("score", assessment.Score),
			zap.String("bucket", string(assessment.Bucket())),
			zap.Int("users", len(users)))
	} else {
		log.Warn("Candidate buy failed for every user", zap.Int("users", len(users)))
	}
}

// assess runs the entry gate: mint suffix, composite risk score, honeypot
// veto and the external rug oracle. Any missing input fails closed.
func (m *Manager) assess(ctx context.Context, mint string, log *zap.Logger) (risk.Assessment, bool) {
	if m.cfg.MintSuffix != "" && !strings.HasSuffix(mint, m.cfg.MintSuffix) {
		return risk.Assessment{}, false
	}

	var audit risk.Audit
	info, err := m.deps.Tokens.TokenSearch(ctx, mint)
	if err == nil && info.Audit != nil {
		audit = risk.Audit{
			Known:                   true,
			MintAuthorityDisabled:   info.Audit.MintAuthorityDisabled,
			FreezeAuthorityDisabled: info.Audit.FreezeAuthorityDisabled,
			TopHoldersPct:           info.Audit.TopHoldersPercentage,
			SnipersPct:              info.Audit.SnipersHoldingPercentage,
		}
	}

	var signals risk.MarketSignals
	stats, err := m.deps.Market.PairStats(ctx, mint)
	if err == nil {
		signals = risk.MarketSignals{
			Known:              true,
			Honeypot:           stats.Honeypot(),
			LiquidityToMcapPct: stats.LiquidityToMarketCapPct(),
			TxCount24h:         stats.TxCount24h(),
		}
	}

	if !audit.Known && !signals.Known {
		log.Info("Skipping candidate, no risk data available")
		return risk.Assessment{}, false
	}

	policy := risk.Policy{Baseline: m.cfg.Risk.Baseline, MinTxCount: m.cfg.Risk.MinTxCount}
	assessment := risk.Score(audit, signals, policy)

	if assessment.Honeypot() {
		log.Warn("Skipping candidate, honeypot veto", zap.Strings("warnings", assessment.Warnings))
		return assessment, false
	}
	if assessment.Score < m.cfg.Risk.MinScore {
		log.Info("Skipping candidate, score below threshold",
			zap.Int("score", assessment.Score),
			zap.Int("min_score", m.cfg.Risk.MinScore),
			zap.Strings("warnings", assessment.Warnings))
		return assessment, false
	}

	if m.deps.Oracle != nil {
		rug, err := m.deps.Oracle.RugPercent(ctx, mint)
		if err != nil {
			log.Warn("Skipping candidate, rug oracle unavailable", zap.Error(err))
			return assessment, false
		}
		if rug > m.cfg.Risk.MaxRugPercent {
			log.Warn("Skipping candidate, rug probability too high",
				zap.Float64("rug_percent", rug),
				zap.Float64("max", m.cfg.Risk.MaxRugPercent))
			return assessment, false
		}
	}

	return assessment, true
}

func (m *Manager) buyForUser(ctx context.Context, user *models.User, mint string) error {
	if m.deps.Store.Holding(user.OwnerID, mint) {
		return nil
	}

	w, err := m.walletFor(ctx, user)
	if err != nil {
		return err
	}

	buySol := user.BuyAmountSol
	if buySol <= 0 {
		buySol = m.cfg.BuyAmountSol
	}
	lamports := uint64(buySol * types.LamportsPerSOL)

	intent := types.SwapIntent{
		InputMint:   types.WSOLMint,
		OutputMint:  mint,
		Amount:      lamports,
		SlippageBps: m.cfg.Slippage.Buy,
		PriorityFee: m.cfg.Priority.Normal,
		Urgency:     types.UrgencyNormal,
	}

	outcome := m.deps.Executor.Execute(ctx, intent, w)
	if !outcome.Succeeded {
		return fmt.Errorf("buy failed (%s): %w", outcome.Kind, outcome.Err)
	}

	status, err := m.deps.Ledger.AwaitConfirmation(ctx, outcome.Signature, m.cfg.ConfirmTimeout)
	if err != nil {
		return fmt.Errorf("buy %s not confirmed: %w", outcome.Signature, err)
	}
	if status.Status == chain.StatusFailed {
		return fmt.Errorf("buy %s failed on chain: %s", outcome.Signature, status.Err)
	}

	entry := m.currentPrice(ctx, mint)
	multiplier := user.TargetMultiplier
	if multiplier <= 1 {
		multiplier = m.cfg.TakeProfitMultiplier
	}

	pos := &types.Position{
		Mint:        mint,
		OwnerID:     user.OwnerID,
		EntryPrice:  entry,
		TargetPrice: entry * multiplier,
		Amount:      m.boughtAmount(ctx, w.PublicKey, mint),
		Status:      types.StatusHeld,
		OpenedAt:    time.Now(),
	}
	m.deps.Store.Add(pos)

	m.logger.Info("Position opened",
		zap.String("owner", user.OwnerID),
		zap.String("mint", mint),
		zap.Float64("entry_price", entry),
		zap.Float64("target_price", pos.TargetPrice),
		zap.Float64("buy_sol", buySol),
		zap.String("signature", outcome.Signature.String()))
	return nil
}

// boughtAmount reads back the token balance after a confirmed buy. Best
// effort: the exit protocol re-reads the holding before acting anyway.
func (m *Manager) boughtAmount(ctx context.Context, owner solana.PublicKey, mint string) uint64 {
	mintPk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0
	}
	holding, err := m.deps.Ledger.GetTokenAccountHolding(ctx, owner, mintPk)
	if err != nil || !holding.Exists {
		return 0
	}
	return holding.RawBalance
}

// monitorPass re-evaluates every held position and hands triggered ones to
// the exit protocol. A position leaves the store once its exit sequence has
// run, whatever the sequence achieved: retries happen inside the protocol,
// never by re-triggering.
func (m *Manager) monitorPass(ctx context.Context) {
	for _, pos := range m.deps.Store.Snapshot(types.StatusHeld) {
		if ctx.Err() != nil {
			return
		}
		reason, price, triggered := m.evaluate(ctx, pos)
		if !triggered {
			continue
		}
		m.closePosition(ctx, pos, reason, price)
	}
}

// evaluate decides whether a position must exit now. The emergency check runs
// first: a crash signal wins even when the price also sits above target.
func (m *Manager) evaluate(ctx context.Context, pos *types.Position) (types.ExitReason, float64, bool) {
	var (
		price      float64
		priceKnown bool
	)

	info, err := m.deps.Tokens.TokenSearch(ctx, pos.Mint)
	if err == nil {
		price = info.USDPrice
		priceKnown = price > 0
		for _, window := range info.Windows() {
			if window != nil && window.PriceChange <= m.cfg.Risk.CrashThreshold {
				return types.ExitEmergency, price, true
			}
		}
	} else {
		fallback, ferr := m.deps.Market.TokenPrice(ctx, pos.Mint)
		if ferr != nil {
			m.logger.Warn("Both price feeds failed, holding position",
				zap.String("mint", pos.Mint),
				zap.String("owner", pos.OwnerID),
				zap.NamedError("primary", err),
				zap.NamedError("fallback", ferr))
			return 0, 0, false
		}
		price = fallback
		priceKnown = price > 0
	}

	if priceKnown && pos.TargetPrice > 0 && price >= pos.TargetPrice {
		return types.ExitTargetHit, price, true
	}
	return 0, price, false
}

func (m *Manager) closePosition(ctx context.Context, pos *types.Position, reason types.ExitReason, price float64) {
	log := m.logger.With(
		zap.String("owner", pos.OwnerID),
		zap.String("mint", pos.Mint),
		zap.String("reason", reason.String()))

	m.deps.Store.SetStatus(pos.OwnerID, pos.Mint, types.StatusExiting)

	user, err := m.deps.Users.GetUser(ctx, pos.OwnerID)
	if err != nil {
		log.Error("Cannot resolve position owner, dropping position", zap.Error(err))
		m.deps.Store.Remove(pos.OwnerID, pos.Mint)
		return
	}
	w, err := m.walletFor(ctx, user)
	if err != nil {
		log.Error("Cannot resolve signer for exit, dropping position", zap.Error(err))
		m.deps.Store.Remove(pos.OwnerID, pos.Mint)
		return
	}

	report := m.deps.Exit.Run(ctx, w, pos.Mint, reason)
	log.Info("Exit sequence finished",
		zap.String("outcome", report.Outcome.String()),
		zap.Int("passes", report.Passes),
		zap.Bool("sell_succeeded", report.SellSucceeded),
		zap.Bool("reclaim_sent", report.ReclaimSent))

	m.recordHit(ctx, pos, reason, price)
	m.deps.Store.Remove(pos.OwnerID, pos.Mint)
}

func (m *Manager) recordHit(ctx context.Context, pos *types.Position, reason types.ExitReason, price float64) {
	if m.deps.Hits == nil {
		return
	}
	var pct float64
	if pos.EntryPrice > 0 && price > 0 {
		pct = (price - pos.EntryPrice) / pos.EntryPrice * 100
	}

	var err error
	switch reason {
	case types.ExitTargetHit:
		err = m.deps.Hits.SaveTargetHit(ctx, &models.TargetHit{
			OwnerID:       pos.OwnerID,
			TokenMint:     pos.Mint,
			ProfitPercent: pct,
		})
	case types.ExitEmergency:
		err = m.deps.Hits.SaveStopLossHit(ctx, &models.StopLossHit{
			OwnerID:     pos.OwnerID,
			TokenMint:   pos.Mint,
			LossPercent: pct,
		})
	}
	if err != nil {
		m.logger.Warn("Failed to persist hit record",
			zap.String("owner", pos.OwnerID),
			zap.String("mint", pos.Mint),
			zap.Error(err))
	}
}

// walletFor resolves and caches the signing wallet for a user. When the
// directory carries a known wallet address, a resolved key that does not
// match it is rejected instead of silently signing with the wrong identity.
func (m *Manager) walletFor(_ context.Context, user *models.User) (*wallet.Wallet, error) {
	m.walletMu.Lock()
	defer m.walletMu.Unlock()

	if w, ok := m.wallets[user.OwnerID]; ok {
		return w, nil
	}

	secret, err := m.deps.Secrets(user.SecretRef)
	if err != nil {
		return nil, fmt.Errorf("resolve secret for %s: %w", user.OwnerID, err)
	}
	w, err := wallet.NewWallet(secret)
	if err != nil {
		return nil, fmt.Errorf("load wallet for %s: %w", user.OwnerID, err)
	}
	if user.WalletAddress != "" && w.PublicKey.String() != user.WalletAddress {
		return nil, fmt.Errorf("wallet mismatch for %s: resolved key does not match registered address", user.OwnerID)
	}

	m.wallets[user.OwnerID] = w
	return w, nil
}

// currentPrice samples the token price, primary feed first.
func (m *Manager) currentPrice(ctx context.Context, mint string) float64 {
	if info, err := m.deps.Tokens.TokenSearch(ctx, mint); err == nil && info.USDPrice > 0 {
		return info.USDPrice
	}
	if price, err := m.deps.Market.TokenPrice(ctx, mint); err == nil {
		return price
	}
	m.logger.Warn("Entry price unavailable, take-profit disabled for this position",
		zap.String("mint", mint))
	return 0
}
