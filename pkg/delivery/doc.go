// Package delivery is a durable, at-least-once envelope queue with delayed
// delivery, per-key deduplication of pending envelopes and a dead letter
// table.
//
// A Publisher stores envelopes through a PublisherRepository; a Worker polls
// a WorkerRepository, claims due envelopes under a time-bound lock and calls
// the Handler registered for the envelope's topic. A handler error records a
// failed attempt and reschedules the envelope with linear backoff; when the
// attempts are used up, or no handler exists for the topic, the envelope is
// moved to the dead letters.
//
// WithDedupKey makes Publish fail with ErrDuplicate while another pending
// envelope holds the same key. Claiming an envelope releases its key, so a
// handler can publish the follow-up envelope for the same key.
//
// MemoryStorage backs tests and single-process runs; PostgresStorage uses
// the delivery_envelopes and delivery_dead_letters tables created by the
// service migrations.
//
//	pub, _ := delivery.NewPublisher(store)
//	_, err := pub.Publish(ctx, "entitlement.event", payload,
//		delivery.WithDeliverAt(at),
//		delivery.WithDedupKey("phase/"+subID.String()),
//	)
//
//	w, _ := delivery.NewWorker(store, delivery.WithConcurrency(4))
//	w.RegisterHandlers(delivery.RawHandler("entitlement.event", handle))
//	g.Go(w.Run(ctx))
package delivery
