// internal/engine/fanout.go
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/snipekit/solana-sniper/internal/storage/models"
)

// UserAction is one user's share of a fanned-out operation.
type UserAction func(ctx context.Context, user *models.User) error

// UserOutcome records how one user's action ended.
type UserOutcome struct {
	OwnerID   string
	Succeeded bool
	Err       error
}

// Fanout applies an action to every enrolled user sequentially. One user's
// failure, including a panic inside their action, never prevents the
// remaining users from being attempted.
type Fanout struct {
	logger *zap.Logger
}

func NewFanout(logger *zap.Logger) *Fanout {
	return &Fanout{logger: logger.Named("fanout")}
}

func (f *Fanout) Apply(ctx context.Context, name string, users []*models.User, action UserAction) []UserOutcome {
	outcomes := make([]UserOutcome, 0, len(users))
	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		err := f.runOne(ctx, user, action)
		if err != nil {
			f.logger.Warn("User action failed",
				zap.String("action", name),
				zap.String("owner", user.OwnerID),
				zap.Error(err))
		}
		outcomes = append(outcomes, UserOutcome{
			OwnerID:   user.OwnerID,
			Succeeded: err == nil,
			Err:       err,
		})
	}
	return outcomes
}

func (f *Fanout) runOne(ctx context.Context, user *models.User, action UserAction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in user action: %v", r)
		}
	}()
	return action(ctx, user)
}

// AnySucceeded reports whether at least one user's action completed.
func AnySucceeded(outcomes []UserOutcome) bool {
	for _, o := range outcomes {
		if o.Succeeded {
			return true
		}
	}
	return false
}
