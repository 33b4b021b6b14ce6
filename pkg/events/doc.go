/*
Package events provides an in-memory event broker for OmenDB's internal
notifications: table lifecycle, transaction outcomes, checkpoints, GC
cycles, vector index builds, leaf splits, and compactions.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  Publisher → Event Channel (buffer: 100)                 │
	│       ↓                                                    │
	│  Broadcast Loop                                           │
	│       ↓                                                    │
	│  Subscriber Channels (buffer: 50 each, full = skip)       │
	└────────────────────────────────────────────────────────┘

Event types: table.created, table.dropped, txn.committed, txn.aborted,
checkpoint.done, gc.cycle_completed, vector_index.built, alex.leaf_split,
kv.compaction_done.

# Usage

	import "github.com/omendb/omendb/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for ev := range sub {
			log.WithComponent("db").Info().Str("type", string(ev.Type)).Msg(ev.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventCheckpointDone,
		Message: "checkpoint truncated 4 WAL segments",
		Metadata: map[string]string{"segments_reclaimed": "4"},
	})

Publish queues the event on the broker's buffered channel (100 events)
and blocks while that queue is full, until there is room or the broker
stops. Delivery to subscribers is best-effort: a subscriber whose buffer
is full skips the event rather than stalling the broadcast loop.
*/
package events
