// Package schedule drives systems over a message bus one tick at a time.
//
// A World owns the message.Registry and the cursor store. A Schedule holds
// named systems; each system declares its readers, writers and run conditions
// in a setup function and returns the body to run every tick:
//
//	world := schedule.NewWorld(message.WithLogger(log))
//	message.MustRegister[Ping](world.Registry())
//
//	sched := schedule.New(world, schedule.WithLogger(log))
//	sched.MustAdd("pong", func(b *schedule.Builder) (schedule.RunFunc, error) {
//	    pings, err := message.PopulatedReaderFor[Ping](b)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return func(ctx context.Context) error {
//	        for p := range pings.Read() {
//	            b.Logger().InfoContext(ctx, "ping", slog.Int("seq", p.Seq))
//	        }
//	        return nil
//	    }, nil
//	})
//
//	err := sched.Run(ctx)
//
// Before a system runs, every declared param is validated. A skip, such as a
// populated reader with nothing unread, means the system sits out this tick.
// The World's tick boundary rotates every queue after the last system.
//
// Systems that do not conflict run on separate goroutines when parallel
// execution is enabled. Two systems conflict when one writes a message type
// the other reads or writes.
package schedule
