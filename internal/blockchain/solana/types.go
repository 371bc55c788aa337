// internal/blockchain/solana/types.go
package solana

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
	retryDelay     = 500 * time.Millisecond
)

// ChainClient is the surface the engine needs from the ledger RPC.
type ChainClient interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SendRawTransaction(ctx context.Context, serializedTx []byte) (solana.Signature, error)
	GetTokenAccountHolding(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) (*AccountHolding, error)
	AwaitConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) (*SignatureStatus, error)
}

// AccountHolding is the ground-truth state of one token holding account.
// It is fetched fresh before every decision and never cached: balances move
// with network state, not local state.
type AccountHolding struct {
	Address    solana.PublicKey
	ProgramID  solana.PublicKey // owning token program (SPL or Token-2022)
	Mint       solana.PublicKey
	RawBalance uint64
	Decimals   uint8
	UIAmount   float64
	Exists     bool
}

// Confirmation states reported by SignatureStatus.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFinalized = "finalized"
	StatusFailed    = "failed"
)

// SignatureStatus is the observed confirmation state of one signature.
type SignatureStatus struct {
	Signature     solana.Signature
	Status        string // pending | confirmed | finalized | failed
	Confirmations uint64
	Err           string
	CheckedAt     time.Time
}

// RPCMetrics tracks per-endpoint health.
type RPCMetrics struct {
	mutex        sync.RWMutex
	successCount uint64
	errorCount   uint64
	latency      time.Duration
}

// RPCClient is one endpoint in the failover pool.
type RPCClient struct {
	Client  *rpc.Client
	URL     string
	active  bool
	mutex   sync.RWMutex
	metrics *RPCMetrics
}

// Client is a round-robin failover client over the configured RPC list.
type Client struct {
	rpcClients []*RPCClient
	currIndex  int
	mutex      sync.Mutex
	logger     *zap.Logger
}
