// internal/engine/exit.go
package engine

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	chain "github.com/snipekit/solana-sniper/internal/blockchain/solana"
	"github.com/snipekit/solana-sniper/internal/types"
	"github.com/snipekit/solana-sniper/internal/wallet"
)

const exitPasses = 2

// ExitOutcome classifies how an exit sequence ended.
type ExitOutcome int

const (
	// ExitNothingToDo means the first pass found no token account to unwind.
	ExitNothingToDo ExitOutcome = iota
	// ExitReclaimVerified means a later pass confirmed the account is gone.
	ExitReclaimVerified
	// ExitAttemptsExhausted means all passes ran without verified reclamation.
	ExitAttemptsExhausted
)

func (o ExitOutcome) String() string {
	switch o {
	case ExitNothingToDo:
		return "nothing_to_do"
	case ExitReclaimVerified:
		return "reclaim_verified"
	case ExitAttemptsExhausted:
		return "attempts_exhausted"
	default:
		return "unknown"
	}
}

// ExitReport records what an exit sequence actually did on chain.
type ExitReport struct {
	Outcome       ExitOutcome
	Reason        types.ExitReason
	Passes        int
	SellAttempted bool
	SellSucceeded bool
	SellSignature solana.Signature
	ReclaimSent   bool
	ReclaimSig    solana.Signature
}

// ReclaimChain is the ledger surface the exit protocol needs: holdings,
// blockhash for the burn-and-close transaction, submission and confirmation.
type ReclaimChain interface {
	GetTokenAccountHolding(ctx context.Context, owner, mint solana.PublicKey) (*chain.AccountHolding, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	AwaitConfirmation(ctx context.Context, sig solana.Signature, timeout time.Duration) (*chain.SignatureStatus, error)
}

// ExitProtocol unwinds a position and reclaims its rent: up to two passes of
// sell-whatever-is-held followed by an atomic burn-and-close of the token
// account. A failed sell never blocks the reclaim leg, and a pass that finds
// no account verifies that prior work already completed.
type ExitProtocol struct {
	chain          ReclaimChain
	exec           SwapExecutor
	tiers          types.SlippageTiers
	priority       types.PriorityProfile
	confirmTimeout time.Duration
	cooldown       time.Duration
	logger         *zap.Logger
}

func NewExitProtocol(
	ledger ReclaimChain,
	exec SwapExecutor,
	tiers types.SlippageTiers,
	priority types.PriorityProfile,
	confirmTimeout, cooldown time.Duration,
	logger *zap.Logger,
) *ExitProtocol {
	return &ExitProtocol{
		chain:          ledger,
		exec:           exec,
		tiers:          tiers,
		priority:       priority,
		confirmTimeout: confirmTimeout,
		cooldown:       cooldown,
		logger:         logger.Named("exit"),
	}
}

// Run executes the full exit sequence for one mint. Ground truth is re-read
// from the ledger at the start of every pass rather than carried over from
// earlier swap outcomes.
func (p *ExitProtocol) Run(ctx context.Context, signer *wallet.Wallet, mint string, reason types.ExitReason) *ExitReport {
	report := &ExitReport{Outcome: ExitAttemptsExhausted, Reason: reason}

	mintPk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		p.logger.Error("Invalid mint for exit", zap.String("mint", mint), zap.Error(err))
		return report
	}

	log := p.logger.With(
		zap.String("mint", mint),
		zap.String("owner", signer.PublicKey.String()),
		zap.String("reason", reason.String()))
	log.Info("Starting exit sequence")

	for pass := 1; pass <= exitPasses; pass++ {
		report.Passes = pass

		holding := p.fetchHolding(ctx, signer.PublicKey, mintPk, log)
		if !holding.Exists {
			if pass == 1 {
				report.Outcome = ExitNothingToDo
				log.Info("No token account found, nothing to unwind")
			} else {
				report.Outcome = ExitReclaimVerified
				log.Info("Token account gone, reclaim verified", zap.Int("pass", pass))
			}
			return report
		}

		if holding.RawBalance > 0 {
			p.sellLeg(ctx, signer, mint, holding.RawBalance, reason, report, log)
		}

		// The sell may have emptied or even closed the account; re-read
		// before deciding whether a burn is still needed.
		holding = p.fetchHolding(ctx, signer.PublicKey, mintPk, log)
		if !holding.Exists {
			report.Outcome = ExitReclaimVerified
			log.Info("Token account gone after sell, reclaim verified", zap.Int("pass", pass))
			return report
		}

		p.reclaimLeg(ctx, signer, mintPk, holding, report, log)

		if pass < exitPasses {
			p.wait(ctx, p.cooldown)
		}
	}

	log.Warn("Exit passes exhausted without verified reclamation")
	return report
}

// fetchHolding treats a fetch error as an absent account so a flaky RPC node
// cannot wedge the sequence; the next pass re-checks anyway.
func (p *ExitProtocol) fetchHolding(ctx context.Context, owner, mint solana.PublicKey, log *zap.Logger) *chain.AccountHolding {
	holding, err := p.chain.GetTokenAccountHolding(ctx, owner, mint)
	if err != nil {
		log.Warn("Holding lookup failed, treating as absent", zap.Error(err))
		return &chain.AccountHolding{Exists: false}
	}
	return holding
}

func (p *ExitProtocol) sellLeg(
	ctx context.Context,
	signer *wallet.Wallet,
	mint string,
	amount uint64,
	reason types.ExitReason,
	report *ExitReport,
	log *zap.Logger,
) {
	urgency := reason.Urgency()
	intent := types.SwapIntent{
		InputMint:   mint,
		OutputMint:  types.WSOLMint,
		Amount:      amount,
		SlippageBps: p.tiers.SellBps(urgency),
		PriorityFee: p.priority.Fee(urgency),
		Urgency:     urgency,
	}

	report.SellAttempted = true
	outcome := p.exec.Execute(ctx, intent, signer)
	if !outcome.Succeeded {
		log.Warn("Sell leg failed, continuing to reclaim",
			zap.String("error_kind", outcome.Kind.String()),
			zap.Error(outcome.Err))
		return
	}

	report.SellSucceeded = true
	report.SellSignature = outcome.Signature

	status, err := p.chain.AwaitConfirmation(ctx, outcome.Signature, p.confirmTimeout)
	if err != nil {
		// Confirmation is advisory here: the follow-up holding read is the
		// decision input, so degrade to a fixed wait and move on.
		log.Warn("Sell confirmation polling failed, waiting out the window", zap.Error(err))
		p.wait(ctx, p.cooldown)
		return
	}
	log.Info("Sell leg settled",
		zap.String("signature", outcome.Signature.String()),
		zap.String("status", status.Status))
}

// reclaimLeg burns any residual balance and closes the token account in a
// single atomic transaction, so rent is reclaimed only when the dust is gone.
func (p *ExitProtocol) reclaimLeg(
	ctx context.Context,
	signer *wallet.Wallet,
	mint solana.PublicKey,
	holding *chain.AccountHolding,
	report *ExitReport,
	log *zap.Logger,
) {
	var instrs []solana.Instruction
	if holding.RawBalance > 0 {
		instrs = append(instrs, burnInstruction(holding.ProgramID, holding.Address, mint, signer.PublicKey, holding.RawBalance))
	}
	instrs = append(instrs, closeAccountInstruction(holding.ProgramID, holding.Address, signer.PublicKey, signer.PublicKey))

	blockhash, err := p.chain.GetLatestBlockhash(ctx)
	if err != nil {
		log.Warn("Blockhash fetch failed, skipping reclaim this pass", zap.Error(err))
		return
	}

	tx, err := solana.NewTransaction(instrs, blockhash, solana.TransactionPayer(signer.PublicKey))
	if err != nil {
		log.Error("Failed to build reclaim transaction", zap.Error(err))
		return
	}
	if err := signer.SignTransaction(tx); err != nil {
		log.Error("Failed to sign reclaim transaction", zap.Error(err))
		return
	}

	sig, err := p.chain.SendTransaction(ctx, tx)
	if err != nil {
		log.Warn("Reclaim submit failed", zap.Error(err))
		return
	}
	report.ReclaimSent = true
	report.ReclaimSig = sig

	status, err := p.chain.AwaitConfirmation(ctx, sig, p.confirmTimeout)
	if err != nil {
		log.Warn("Reclaim confirmation polling failed", zap.Error(err))
		return
	}
	log.Info("Burn-and-close settled",
		zap.String("signature", sig.String()),
		zap.String("status", status.Status),
		zap.Uint64("burned", holding.RawBalance))
}

func (p *ExitProtocol) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// SPL Token instruction tags shared by the legacy and Token-2022 programs.
const (
	tokenInstructionBurn         = 8
	tokenInstructionCloseAccount = 9
)

func burnInstruction(programID, account, mint, owner solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = tokenInstructionBurn
	binary.LittleEndian.PutUint64(data[1:], amount)
	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.Meta(account).WRITE(),
			solana.Meta(mint).WRITE(),
			solana.Meta(owner).SIGNER(),
		},
		data,
	)
}

func closeAccountInstruction(programID, account, destination, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.Meta(account).WRITE(),
			solana.Meta(destination).WRITE(),
			solana.Meta(owner).SIGNER(),
		},
		[]byte{tokenInstructionCloseAccount},
	)
}
