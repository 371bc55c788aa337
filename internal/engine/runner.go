// internal/engine/runner.go
package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	chain "github.com/snipekit/solana-sniper/internal/blockchain/solana"
	"github.com/snipekit/solana-sniper/internal/config"
	"github.com/snipekit/solana-sniper/internal/jupiter"
	"github.com/snipekit/solana-sniper/internal/market"
	"github.com/snipekit/solana-sniper/internal/risk"
	"github.com/snipekit/solana-sniper/internal/scanner"
	"github.com/snipekit/solana-sniper/internal/storage/postgres"
)

const candidateQueueSize = 64

// SingleUser configures a run for one wallet supplied on the command line
// instead of the subscriber database. The secret stays inside the resolver
// closure and the wallet object.
type SingleUser struct {
	Secret           string
	TargetMultiplier float64
	BuyAmountSol     float64
}

// Runner is the composition root: it wires discovery, the risk gate, the
// executor and the lifecycle manager, then supervises the two long-running
// loops until a signal or a fatal error stops them.
type Runner struct {
	cfg    *config.Config
	single *SingleUser // nil means database-backed multi-user mode
	logger *zap.Logger
}

func NewRunner(cfg *config.Config, single *SingleUser, logger *zap.Logger) *Runner {
	return &Runner{cfg: cfg, single: single, logger: logger.Named("runner")}
}

// envSecretResolver reads key material from the environment variable named by
// the stored reference. The process environment is the hand-off point from
// the deployment's secret store.
func envSecretResolver(ref string) (string, error) {
	value := os.Getenv(ref)
	if value == "" {
		return "", fmt.Errorf("secret reference %q not present in environment", ref)
	}
	return value, nil
}

func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)
	go func() {
		select {
		case sig := <-shutdownCh:
			r.logger.Info("Signal received, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	chainClient, err := chain.NewClient(r.cfg.RPCList, r.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RPC client: %w", err)
	}

	jup := jupiter.NewClient(r.cfg.JupiterQuoteURL, r.cfg.JupiterSwapURL, r.cfg.JupiterTokenURL, r.logger)
	mkt := market.NewClient(r.cfg.DexscreenerURL, r.logger)

	var oracle risk.Oracle
	if r.cfg.RugOracleURL != "" {
		oracle = risk.NewHTTPOracle(r.cfg.RugOracleURL, r.logger)
	}

	var (
		users   UserDirectory
		hits    HitRecorder
		seen    scanner.SeenStore
		secrets SecretResolver
	)
	switch {
	case r.single != nil:
		users = StaticUsers{{
			OwnerID:          "default",
			SecretRef:        "cli",
			BuyAmountSol:     r.single.BuyAmountSol,
			TargetMultiplier: r.single.TargetMultiplier,
			Active:           true,
		}}
		seen = scanner.NewMemorySeen()
		secret := r.single.Secret
		secrets = func(string) (string, error) { return secret, nil }
		r.logger.Info("Running in single-user mode")
	case r.cfg.PostgresURL != "":
		store, err := postgres.NewStorage(r.cfg.PostgresURL, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		if err := store.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		users = store
		hits = store
		seen = store
		secrets = envSecretResolver
		r.logger.Info("Running in multi-user mode")
	default:
		return fmt.Errorf("no users configured: pass signer arguments or set a postgres url")
	}

	candidates := make(chan string, candidateQueueSize)

	executor := NewExecutor(jup, chainClient, r.logger)
	exitProto := NewExitProtocol(
		chainClient, executor,
		r.cfg.Slippage, r.cfg.Priority,
		r.cfg.ConfirmTimeout, r.cfg.ExitCooldown,
		r.logger)

	manager := NewManager(r.cfg, ManagerDeps{
		Store:      NewPositionStore(),
		Executor:   executor,
		Exit:       exitProto,
		Tokens:     jup,
		Market:     mkt,
		Oracle:     oracle,
		Hits:       hits,
		Users:      users,
		Fanout:     NewFanout(r.logger),
		Ledger:     chainClient,
		Secrets:    secrets,
		Candidates: candidates,
	}, r.logger)

	discovery := scanner.New(mkt, seen, candidates, r.cfg.ScanInterval, r.cfg.MintSuffix, r.logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return discovery.Run(ctx) })
	group.Go(func() error { return manager.Run(ctx) })

	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
