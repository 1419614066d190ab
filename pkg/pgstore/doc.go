// Package pgstore is the Postgres subscription repository read by the
// entitlement engine and written by the subscription API.
//
// Subscriptions live in the subscriptions table with their current plan and
// phase; every change is appended to subscription_transitions. Reads return
// transitions ordered by effective time with insertion order breaking ties,
// so the last element is the latest transition. Unknown ids yield an error
// wrapping entitlement.ErrSubscriptionNotFound.
package pgstore
