package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// NewClient creates a failover client over the given RPC endpoints.
func NewClient(rpcURLs []string, logger *zap.Logger) (*Client, error) {
	if len(rpcURLs) == 0 {
		return nil, errors.New("empty RPC URL list")
	}

	var clients []*RPCClient
	for _, urlStr := range rpcURLs {
		if _, err := url.Parse(urlStr); err != nil {
			logger.Warn("Invalid RPC URL", zap.String("url", urlStr), zap.Error(err))
			continue
		}

		client := &RPCClient{
			Client:  rpc.New(urlStr),
			URL:     urlStr,
			active:  true,
			metrics: &RPCMetrics{},
		}
		clients = append(clients, client)
	}

	if len(clients) == 0 {
		return nil, errors.New("no valid RPC URLs provided")
	}

	return &Client{
		rpcClients: clients,
		logger:     logger.Named("rpc"),
	}, nil
}

// GetLatestBlockhash returns a recent blockhash for transaction assembly.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		client := c.getNextClient()
		if client == nil {
			return solana.Hash{}, errors.New("no active RPC clients available")
		}

		start := time.Now()
		result, err := client.Client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		client.updateMetrics(err == nil, time.Since(start))

		if err != nil {
			lastErr = err
			client.setActive(false)
			continue
		}

		return result.Value.Blockhash, nil
	}

	return solana.Hash{}, fmt.Errorf("failed to get latest blockhash after %d attempts: %w", maxRetries, lastErr)
}

// SendTransaction submits a locally-built transaction. Exactly one broadcast
// attempt per endpoint; endpoint failover is not a resubmission of an
// accepted transaction, only of a transport-level failure.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		client := c.getNextClient()
		if client == nil {
			return solana.Signature{}, errors.New("no active RPC clients available")
		}

		start := time.Now()
		sig, err := client.Client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		client.updateMetrics(err == nil, time.Since(start))

		if err != nil {
			if isTransportError(err) {
				lastErr = err
				client.setActive(false)
				continue
			}
			return solana.Signature{}, err
		}

		return sig, nil
	}

	return solana.Signature{}, fmt.Errorf("failed to send transaction after %d attempts: %w", maxRetries, lastErr)
}

// SendRawTransaction submits an already-serialized signed transaction, e.g.
// one authored by the swap aggregator.
func (c *Client) SendRawTransaction(ctx context.Context, serializedTx []byte) (solana.Signature, error) {
	client := c.getNextClient()
	if client == nil {
		return solana.Signature{}, errors.New("no active RPC clients available")
	}

	start := time.Now()
	sig, err := client.Client.SendRawTransactionWithOpts(ctx, serializedTx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	client.updateMetrics(err == nil, time.Since(start))
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// parsedTokenAccount mirrors the jsonParsed layout of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string  `json:"amount"`
				Decimals uint8   `json:"decimals"`
				UIAmount float64 `json:"uiAmount"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// GetTokenAccountHolding fetches the ground-truth state of the owner's
// holding account for one mint. A missing account is not an error: it is
// reported as Exists=false so callers can distinguish "closed" from "RPC
// down".
func (c *Client) GetTokenAccountHolding(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) (*AccountHolding, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		client := c.getNextClient()
		if client == nil {
			return nil, errors.New("no active RPC clients available")
		}

		start := time.Now()
		result, err := client.Client.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{Mint: mint.ToPointer()},
			&rpc.GetTokenAccountsOpts{
				Commitment: rpc.CommitmentConfirmed,
				Encoding:   solana.EncodingJSONParsed,
			})
		client.updateMetrics(err == nil, time.Since(start))

		if err != nil {
			lastErr = err
			client.setActive(false)
			continue
		}

		if len(result.Value) == 0 {
			return &AccountHolding{Mint: mint, Exists: false}, nil
		}

		acc := result.Value[0]
		var parsed parsedTokenAccount
		if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse token account data: %w", err)
		}

		var rawBalance uint64
		if _, err := fmt.Sscan(parsed.Parsed.Info.TokenAmount.Amount, &rawBalance); err != nil {
			return nil, fmt.Errorf("failed to parse token balance %q: %w", parsed.Parsed.Info.TokenAmount.Amount, err)
		}

		return &AccountHolding{
			Address:    acc.Pubkey,
			ProgramID:  acc.Account.Owner,
			Mint:       mint,
			RawBalance: rawBalance,
			Decimals:   parsed.Parsed.Info.TokenAmount.Decimals,
			UIAmount:   parsed.Parsed.Info.TokenAmount.UIAmount,
			Exists:     true,
		}, nil
	}

	return nil, fmt.Errorf("failed to get token accounts after %d attempts: %w", maxRetries, lastErr)
}

// GetBalance returns the owner's native balance in lamports.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	client := c.getNextClient()
	if client == nil {
		return 0, errors.New("no active RPC clients available")
	}

	start := time.Now()
	result, err := client.Client.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	client.updateMetrics(err == nil, time.Since(start))
	if err != nil {
		return 0, err
	}
	return result.Value, nil
}

func (c *Client) getNextClient() *RPCClient {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	initialIndex := c.currIndex
	for {
		c.currIndex = (c.currIndex + 1) % len(c.rpcClients)
		if c.rpcClients[c.currIndex].isActive() {
			return c.rpcClients[c.currIndex]
		}
		if c.currIndex == initialIndex {
			// Pool exhausted; reactivate everything and let the caller's
			// retry budget decide when to give up.
			for _, client := range c.rpcClients {
				client.setActive(true)
			}
			return c.rpcClients[c.currIndex]
		}
	}
}

// isTransportError reports whether err is a transport-level failure rather
// than a structured RPC rejection. Only transport failures are eligible for
// endpoint failover: a rejected transaction must never be resubmitted here.
func isTransportError(err error) bool {
	var rpcErr *jsonrpc.RPCError
	return !errors.As(err, &rpcErr)
}
