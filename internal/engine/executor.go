// internal/engine/executor.go
package engine

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/snipekit/solana-sniper/internal/jupiter"
	"github.com/snipekit/solana-sniper/internal/types"
	"github.com/snipekit/solana-sniper/internal/wallet"
)

// Aggregator is the quote-and-build surface of the swap aggregator.
type Aggregator interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint64) (*jupiter.QuoteResponse, error)
	BuildSwap(ctx context.Context, quote *jupiter.QuoteResponse, owner solana.PublicKey, priorityFee uint64) ([]byte, error)
}

// Broadcaster submits a serialized signed transaction to the ledger.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, serializedTx []byte) (solana.Signature, error)
}

// SwapExecutor performs one swap attempt.
type SwapExecutor interface {
	Execute(ctx context.Context, intent types.SwapIntent, signer *wallet.Wallet) types.SwapOutcome
}

// Executor drives one quote→build→sign→broadcast cycle. It is NOT
// idempotent: every call is exactly one broadcast attempt, and a SubmitError
// after an ambiguous network failure must never be answered by re-executing
// the same intent — callers re-fetch ground truth instead.
type Executor struct {
	aggregator Aggregator
	chain      Broadcaster
	logger     *zap.Logger
}

func NewExecutor(aggregator Aggregator, chain Broadcaster, logger *zap.Logger) *Executor {
	return &Executor{
		aggregator: aggregator,
		chain:      chain,
		logger:     logger.Named("executor"),
	}
}

// Execute runs one swap attempt for the given intent. The aggregator authors
// the transaction message; the signer only attaches a signature over it.
func (e *Executor) Execute(ctx context.Context, intent types.SwapIntent, signer *wallet.Wallet) types.SwapOutcome {
	quote, err := e.aggregator.Quote(ctx, intent.InputMint, intent.OutputMint, intent.Amount, intent.SlippageBps)
	if err != nil {
		e.logger.Warn("Quote failed",
			zap.String("input", intent.InputMint),
			zap.String("output", intent.OutputMint),
			zap.Error(err))
		return types.SwapOutcome{Kind: types.ErrKindQuote, Err: err}
	}

	txBytes, err := e.aggregator.BuildSwap(ctx, quote, signer.PublicKey, intent.PriorityFee)
	if err != nil {
		e.logger.Warn("Swap build failed", zap.Error(err))
		return types.SwapOutcome{Kind: types.ErrKindBuild, Err: err}
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return types.SwapOutcome{Kind: types.ErrKindBuild, Err: fmt.Errorf("failed to deserialize transaction: %w", err)}
	}

	if err := signer.SignTransaction(tx); err != nil {
		return types.SwapOutcome{Kind: types.ErrKindBuild, Err: fmt.Errorf("failed to sign transaction: %w", err)}
	}

	signedBytes, err := tx.MarshalBinary()
	if err != nil {
		return types.SwapOutcome{Kind: types.ErrKindBuild, Err: fmt.Errorf("failed to serialize signed transaction: %w", err)}
	}

	sig, err := e.chain.SendRawTransaction(ctx, signedBytes)
	if err != nil {
		e.logger.Warn("Transaction submit failed", zap.Error(err))
		return types.SwapOutcome{Kind: types.ErrKindSubmit, Err: err}
	}

	e.logger.Info("Swap accepted",
		zap.String("signature", sig.String()),
		zap.String("input", intent.InputMint),
		zap.String("output", intent.OutputMint),
		zap.Uint64("amount", intent.Amount),
		zap.Uint64("slippage_bps", intent.SlippageBps),
		zap.String("urgency", intent.Urgency.String()))

	return types.SwapOutcome{Succeeded: true, Signature: sig}
}
