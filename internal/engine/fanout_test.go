// internal/engine/fanout_test.go
package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/snipekit/solana-sniper/internal/storage/models"
)

func fanoutUsers(ids ...string) []*models.User {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, &models.User{OwnerID: id, Active: true})
	}
	return users
}

func TestFanout_OneFailureDoesNotStopOthers(t *testing.T) {
	f := NewFanout(zaptest.NewLogger(t))
	var attempted []string

	outcomes := f.Apply(context.Background(), "buy", fanoutUsers("u1", "u2", "u3"),
		func(_ context.Context, user *models.User) error {
			attempted = append(attempted, user.OwnerID)
			if user.OwnerID == "u2" {
				return errors.New("insufficient funds")
			}
			return nil
		})

	assert.Equal(t, []string{"u1", "u2", "u3"}, attempted)
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Succeeded)
	assert.False(t, outcomes[1].Succeeded)
	assert.Error(t, outcomes[1].Err)
	assert.True(t, outcomes[2].Succeeded)
	assert.True(t, AnySucceeded(outcomes))
}

func TestFanout_PanicIsContainedPerUser(t *testing.T) {
	f := NewFanout(zaptest.NewLogger(t))
	var attempted []string

	outcomes := f.Apply(context.Background(), "sell", fanoutUsers("u1", "u2"),
		func(_ context.Context, user *models.User) error {
			attempted = append(attempted, user.OwnerID)
			if user.OwnerID == "u1" {
				panic("nil wallet")
			}
			return nil
		})

	assert.Equal(t, []string{"u1", "u2"}, attempted)
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Succeeded)
	assert.Contains(t, outcomes[0].Err.Error(), "panic")
	assert.True(t, outcomes[1].Succeeded)
}

func TestFanout_AllFailures(t *testing.T) {
	f := NewFanout(zaptest.NewLogger(t))

	outcomes := f.Apply(context.Background(), "buy", fanoutUsers("u1", "u2"),
		func(_ context.Context, _ *models.User) error {
			return errors.New("boom")
		})

	assert.False(t, AnySucceeded(outcomes))
}

func TestFanout_CancelledContextStopsEarly(t *testing.T) {
	f := NewFanout(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := f.Apply(ctx, "buy", fanoutUsers("u1", "u2"),
		func(_ context.Context, _ *models.User) error { return nil })

	assert.Empty(t, outcomes)
}
