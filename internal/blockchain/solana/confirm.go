// internal/blockchain/solana/confirm.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// ErrConfirmationTimeout is returned when a signature does not reach the
// confirmed commitment within the caller's deadline.
var ErrConfirmationTimeout = errors.New("transaction confirmation timeout")

// AwaitConfirmation polls the signature status until it is confirmed,
// finalized, failed, or the timeout elapses. This replaces fixed sleeps:
// acceptance by the RPC alone is not treated as confirmation.
func (c *Client) AwaitConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) (*SignatureStatus, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, ErrConfirmationTimeout
		case <-ticker.C:
			status, err := c.getSignatureStatus(ctx, signature)
			if err != nil {
				c.logger.Warn("Confirmation check failed", zap.Error(err))
				continue
			}
			switch status.Status {
			case StatusConfirmed, StatusFinalized, StatusFailed:
				return status, nil
			}
		}
	}
}

// getSignatureStatus fetches the status once, retrying transient RPC errors
// with exponential backoff.
func (c *Client) getSignatureStatus(ctx context.Context, signature solana.Signature) (*SignatureStatus, error) {
	operation := func() (*rpc.GetSignatureStatusesResult, error) {
		client := c.getNextClient()
		if client == nil {
			return nil, errors.New("no active RPC clients available")
		}

		start := time.Now()
		response, err := client.Client.GetSignatureStatuses(ctx, false, signature)
		client.updateMetrics(err == nil, time.Since(start))
		if err != nil {
			return nil, err
		}
		return response, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryDelay

	response, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxRetries))
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}

	status := &SignatureStatus{
		Signature: signature,
		Status:    StatusPending,
		CheckedAt: time.Now(),
	}

	if len(response.Value) == 0 || response.Value[0] == nil {
		return status, nil
	}

	value := response.Value[0]
	if value.Confirmations != nil {
		status.Confirmations = *value.Confirmations
	}

	switch value.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		status.Status = StatusFinalized
	case rpc.ConfirmationStatusConfirmed:
		status.Status = StatusConfirmed
	}

	if value.Err != nil {
		status.Err = fmt.Sprintf("%v", value.Err)
		status.Status = StatusFailed
	}

	return status, nil
}
