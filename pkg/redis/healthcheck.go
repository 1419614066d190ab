package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const probeTTL = 5 * time.Second

// Healthcheck returns a readiness probe for the lock store. Locks need
// writes, so a ping alone is not enough: the probe sets probeKey with a
// short expiry and fails with ErrNotWritable when that is refused.
func Healthcheck(client redis.UniversalClient, probeKey string) func(context.Context) error {
	if probeKey == "" {
		probeKey = "entitlement:healthcheck"
	}
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrUnavailable, err)
		}
		if err := client.Set(ctx, probeKey, time.Now().Unix(), probeTTL).Err(); err != nil {
			return errors.Join(ErrNotWritable, err)
		}
		return nil
	}
}
