package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
)

// RevokedRetention is how long revoked refresh tokens are kept after last use.
const RevokedRetention = 30 * 24 * time.Hour

type RefreshTokenPurger interface {
	PurgeStale(ctx context.Context, retention time.Duration) (int64, error)
}

type ResetPurger interface {
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}

// Cleanup deletes expired refresh tokens, revoked ones past retention and
// spent password resets. Both purges are attempted even if one fails.
func Cleanup(tokens RefreshTokenPurger, resets ResetPurger, retention time.Duration, logger logging.Logger, now func() time.Time) Func {
	return func(ctx context.Context) error {
		var errs []error

		nTokens, err := tokens.PurgeStale(ctx, retention)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge refresh tokens: %w", err))
		}

		nResets, err := resets.DeleteStale(ctx, now())
		if err != nil {
			errs = append(errs, fmt.Errorf("purge password resets: %w", err))
		}

		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		logger.Info(ctx, "cleanup done", "refresh_tokens_deleted", nTokens, "password_resets_deleted", nResets)
		return nil
	}
}
