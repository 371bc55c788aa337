// internal/types/types.go
package types

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Constants
const (
	LamportsPerSOL = 1_000_000_000

	// WSOLMint is the wrapped native asset; every sell swaps back into it.
	WSOLMint = "So11111111111111111111111111111111111111112"
)

// Urgency drives the slippage tier of a swap attempt.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyElevated
	UrgencyEmergency
)

func (u Urgency) String() string {
	switch u {
	case UrgencyElevated:
		return "elevated"
	case UrgencyEmergency:
		return "emergency"
	default:
		return "normal"
	}
}

// ExitReason is a closed set of causes for leaving a position.
type ExitReason int

const (
	ExitTargetHit ExitReason = iota
	ExitEmergency
)

func (r ExitReason) String() string {
	switch r {
	case ExitEmergency:
		return "emergency_exit"
	default:
		return "target_hit"
	}
}

// Urgency maps the exit cause to the slippage tier used for the sell leg.
func (r ExitReason) Urgency() Urgency {
	if r == ExitEmergency {
		return UrgencyEmergency
	}
	return UrgencyNormal
}

// SwapIntent describes exactly one requested exchange. Intents are built
// fresh for every attempt and never reused: the quote behind them expires.
type SwapIntent struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // raw smallest-unit quantity
	SlippageBps uint64
	PriorityFee uint64 // compute unit price hint, micro-lamports
	Urgency     Urgency
}

// ErrorKind classifies where in the quote→build→submit sequence an attempt
// failed.
type ErrorKind int

const (
	ErrKindNone ErrorKind = iota
	ErrKindQuote
	ErrKindBuild
	ErrKindSubmit
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindQuote:
		return "quote"
	case ErrKindBuild:
		return "build"
	case ErrKindSubmit:
		return "submit"
	default:
		return "none"
	}
}

// SwapOutcome is the result of one swap attempt. A true Succeeded means the
// RPC accepted the transaction, not that it is finalized.
type SwapOutcome struct {
	Succeeded bool
	Signature solana.Signature
	Kind      ErrorKind
	Err       error
}

// PositionStatus tracks a holding through its lifecycle.
type PositionStatus int

const (
	StatusScouted PositionStatus = iota
	StatusBought
	StatusHeld
	StatusExiting
	StatusReclaiming
	StatusClosed
	StatusFailed
)

func (s PositionStatus) String() string {
	switch s {
	case StatusBought:
		return "bought"
	case StatusHeld:
		return "held"
	case StatusExiting:
		return "exiting"
	case StatusReclaiming:
		return "reclaiming"
	case StatusClosed:
		return "closed"
	case StatusFailed:
		return "failed"
	default:
		return "scouted"
	}
}

// Position is one tracked holding for one owner.
type Position struct {
	Mint        string
	OwnerID     string
	EntryPrice  float64
	TargetPrice float64
	Amount      uint64 // advisory only; on-chain balance is re-fetched before any action
	Status      PositionStatus
	OpenedAt    time.Time
}
