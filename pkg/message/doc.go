// Package message implements a tick-driven, double-buffered message bus for
// systems that run on a scheduler and must not reference each other directly.
//
// Writers append typed messages to a Queue. Any number of readers later drain
// the messages they have not seen yet, each through its own Cursor. The
// scheduler calls Rotate once per tick: the previous generation is discarded
// and the current one takes its place, so a message can be read during the
// tick it was sent and the one after. Readers that fall further behind lose
// messages; the loss is logged as a warning and the cursor jumps forward. It is
// never returned as an error.
//
// # Main Types
//
//   - [Queue]: per-type double buffer with Send, Rotate, ClearAll and Drain.
//   - [Cursor]: a reader's private position, stored outside the queue.
//   - [Reader]: cursor + queue, with Read, ReadWithID, ParRead, Len, Clear.
//   - [PopulatedReader]: a Reader whose system is skipped while nothing is unread.
//   - [Writer]: exclusive send handle.
//   - [Registry]: one queue per Go type, keyed by reflect.Type.
//   - [CursorStore]: cursors keyed by owning system, param slot and type.
//
// # Basic Usage
//
//	reg := message.NewRegistry(message.WithLogger(log))
//	pings := message.MustRegister[Ping](reg)
//
//	reader := message.NewReader(pings, nil)
//	pings.Send(Ping{Seq: 1})
//	pings.Send(Ping{Seq: 2})
//
//	for p := range reader.Read() {
//	    fmt.Println(p.Seq)
//	}
//
//	reg.RotateAll() // once per tick
//
// # Parallel Reads
//
// ParRead consumes the same range as Read but returns it as chunks that can be
// processed on several goroutines:
//
//	reader.ParRead(message.WithBatchSize(64)).ForEach(func(p *Ping) {
//	    total.Add(int64(p.Seq))
//	})
//
// # Concurrency
//
// The bus does no locking of its own. Readers of one type may run
// concurrently because each owns its cursor. Writers, Rotate and ClearAll need
// exclusive access to the queue, which the scheduler guarantees by never
// running a writer of T alongside any other reader or writer of T. See
// package schedule for a scheduler that honours these rules.
package message
