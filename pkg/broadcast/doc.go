// Package broadcast fans values out from one publisher to many subscribers.
//
// Publishing never blocks: each subscriber owns a bounded buffer and, once it
// is full, the oldest pending value is discarded and counted in Dropped. This
// suits feeds where only the latest state matters, such as per-tick snapshots.
//
//	b := broadcast.NewMemoryBroadcaster[int](4)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	b.Publish(1)
//	for v := range sub.Receive() {
//		fmt.Println(v)
//	}
//
// A subscription ends when its context is done, when Close is called on it, or
// when the broadcaster is closed; in every case the receive channel is closed.
package broadcast
