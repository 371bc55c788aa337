// cmd/sniper/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/snipekit/solana-sniper/internal/config"
	"github.com/snipekit/solana-sniper/internal/engine"
	"github.com/snipekit/solana-sniper/internal/logger"
)

const usage = `usage:
  sniper                            multi-user mode (users from storage)
  sniper <secret-env> [mult] [sol]  single-user mode

  secret-env  name of the environment variable holding the signer's
              base58 secret key (the key itself is never passed as an
              argument, so it cannot leak through the process list)
  mult        take-profit multiplier, e.g. 2.0 (optional)
  sol         buy amount in SOL per token, e.g. 0.05 (optional)
`

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootLog, _ := zap.NewDevelopment()
	cfg, err := config.LoadConfig("configs/config.json")
	if err != nil {
		bootLog.Error("Failed to load config", zap.Error(err))
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		bootLog.Error("Failed to initialize logging", zap.Error(err))
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting sniper engine")

	single, err := singleUserFromArgs(os.Args[1:], cfg)
	if err != nil {
		fmt.Fprint(os.Stderr, usage)
		log.Error("Invalid arguments", zap.Error(err))
		os.Exit(1)
	}

	runner := engine.NewRunner(cfg, single, log)
	if err := runner.Run(ctx); err != nil {
		log.Error("Engine stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Engine stopped")
}

// singleUserFromArgs builds the single-user options from positional
// arguments, or returns nil when none are given and storage mode applies.
func singleUserFromArgs(args []string, cfg *config.Config) (*engine.SingleUser, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) > 3 {
		return nil, fmt.Errorf("too many arguments")
	}

	secret := os.Getenv(args[0])
	if secret == "" {
		return nil, fmt.Errorf("environment variable %q is empty", args[0])
	}

	single := &engine.SingleUser{
		Secret:           secret,
		TargetMultiplier: cfg.TakeProfitMultiplier,
		BuyAmountSol:     cfg.BuyAmountSol,
	}

	if len(args) >= 2 {
		mult, err := strconv.ParseFloat(args[1], 64)
		if err != nil || mult <= 1 {
			return nil, fmt.Errorf("take-profit multiplier must be a number greater than 1, got %q", args[1])
		}
		single.TargetMultiplier = mult
	}
	if len(args) == 3 {
		sol, err := strconv.ParseFloat(args[2], 64)
		if err != nil || sol <= 0 {
			return nil, fmt.Errorf("buy amount must be a positive number of SOL, got %q", args[2])
		}
		single.BuyAmountSol = sol
	}
	return single, nil
}
