/*
Package events provides an in-memory event broker publishing task
lifecycle events (started/completed/failed, transfer started/completed,
teardown registration/execution) for
the CLI's progress output, kept almost verbatim from the teacher's
pub/sub broker -- non-blocking publish, buffered per-subscriber
channels, fire-and-forget delivery.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for ev := range sub {
			fmt.Printf("[%s] %s %s\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.Message)
		}
	}()

	broker.Publish(&events.Event{Type: events.EventTaskStarted, Node: "A", Message: "hello"})

As in the teacher's broker, delivery is best-effort: a subscriber with
a full buffer silently misses events rather than blocking the
publisher. This package is for progress UX only, never for
correctness-critical signaling between pkg/engine components.
*/
package events
