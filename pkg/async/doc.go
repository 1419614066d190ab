// Package async runs a function in its own goroutine and hands back a Future
// for its result.
//
// The entitlement engine uses it to bound listener callbacks: each callback
// runs through Async and is awaited with AwaitWithTimeout, so one slow
// observer cannot stall processing of a subscription indefinitely. Panics in
// the function are recovered and surface as ErrPanic.
//
//	f := async.Async(ctx, transition, func(ctx context.Context, t Transition) (struct{}, error) {
//		return struct{}{}, listener.SubscriptionCreated(ctx, t)
//	})
//	if _, err := f.AwaitWithTimeout(5 * time.Second); errors.Is(err, async.ErrTimeout) {
//		// the callback keeps running; the caller moves on
//	}
package async
