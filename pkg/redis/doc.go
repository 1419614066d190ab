// Package redis connects to the Redis instance used for cross-process
// subscription locks (see keylock.RedisLocker) and exposes a readiness probe.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	locker := keylock.NewRedisLocker(client)
package redis
