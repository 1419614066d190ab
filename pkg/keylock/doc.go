// Package keylock provides mutual exclusion scoped to a string key.
//
// The entitlement engine locks on the subscription id so that all events for
// one subscription are processed one at a time while different subscriptions
// proceed in parallel. MemoryLocker covers single-process deployments;
// RedisLocker extends the guarantee across processes using SET NX with an
// expiry and a compare-and-delete unlock script.
//
//	locker := keylock.NewMemoryLocker()
//	unlock, err := locker.Lock(ctx, subscriptionID.String())
//	if err != nil {
//		return err
//	}
//	defer unlock()
package keylock
