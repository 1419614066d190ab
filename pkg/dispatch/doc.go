// Package dispatch connects the entitlement engine to the delivery queue.
//
// Scheduler stores phase events as envelopes due at their effective time,
// keyed by PhaseDedupKey so a subscription never has two pending phase
// events. Emitter publishes API events on the same topic. Source runs a
// delivery consumer and hands decoded events to the engine; an engine error
// leaves the envelope for redelivery.
package dispatch
