package jobs

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthSetter interface {
	SetServing(serving bool)
}

// Keepalive pings the database and mirrors the outcome into the health status.
func Keepalive(db Pinger, health HealthSetter, logger logging.Logger) Func {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			health.SetServing(false)
			return fmt.Errorf("database keepalive ping: %w", err)
		}
		health.SetServing(true)
		logger.Debug(ctx, "database keepalive ping ok")
		return nil
	}
}
