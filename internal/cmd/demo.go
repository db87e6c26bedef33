package cmd

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/message"
	"github.com/dmitrymomot/tickbus/pkg/schedule"
)

// Ping is emitted by the demo every tick.
type Ping struct {
	Seq int
}

// Pong answers a Ping.
type Pong struct {
	Seq int
}

// demo wires a small producer/consumer graph that exercises every reader
// flavour: plain, populated, parallel, run-condition and a reader that falls
// behind on purpose.
type demo struct {
	rate     int
	lagEvery uint64
	sum      atomic.Int64
	pongs    atomic.Int64
}

func (d *demo) register(w *schedule.World) error {
	if _, err := message.Register[Ping](w.Registry()); err != nil {
		return err
	}
	_, err := message.Register[Pong](w.Registry())
	return err
}

func (d *demo) install(s *schedule.Schedule) error {
	systems := []struct {
		name  string
		setup schedule.SetupFunc
	}{
		{"emit", d.emit},
		{"reply", d.reply},
		{"sum", d.sumPings},
		{"audit", d.audit},
		{"laggard", d.laggard},
	}
	for _, sys := range systems {
		if err := s.Add(sys.name, sys.setup); err != nil {
			return err
		}
	}
	return nil
}

func (d *demo) emit(b *schedule.Builder) (schedule.RunFunc, error) {
	pings, err := message.WriterFor[Ping](b)
	if err != nil {
		return nil, err
	}
	seq := 0
	return func(context.Context) error {
		batch := make([]Ping, d.rate)
		for i := range batch {
			batch[i] = Ping{Seq: seq}
			seq++
		}
		pings.SendBatch(batch...)
		return nil
	}, nil
}

func (d *demo) reply(b *schedule.Builder) (schedule.RunFunc, error) {
	pings, err := message.PopulatedReaderFor[Ping](b)
	if err != nil {
		return nil, err
	}
	pongs, err := message.WriterFor[Pong](b)
	if err != nil {
		return nil, err
	}
	return func(context.Context) error {
		for p := range pings.Read() {
			pongs.Send(Pong{Seq: p.Seq})
		}
		return nil
	}, nil
}

func (d *demo) sumPings(b *schedule.Builder) (schedule.RunFunc, error) {
	pings, err := message.ReaderFor[Ping](b)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		pings.ParRead().ForEach(func(p *Ping) {
			d.sum.Add(int64(p.Seq))
		})
		b.Logger().DebugContext(ctx, "pings summed", slog.Int64("sum", d.sum.Load()))
		return nil
	}, nil
}

func (d *demo) audit(b *schedule.Builder) (schedule.RunFunc, error) {
	cond, err := message.OnMessage[Pong](b)
	if err != nil {
		return nil, err
	}
	b.RunIf(cond)
	pongs, err := message.ReaderFor[Pong](b)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		n := 0
		for range pongs.Read() {
			n++
		}
		total := d.pongs.Add(int64(n))
		b.Logger().InfoContext(ctx, "pongs received", slog.Int("count", n), slog.Int64("total", total))
		return nil
	}, nil
}

// laggard only reads every lagEvery ticks, so with lagEvery > 2 it loses
// messages to rotation and the bus logs a missed-messages warning.
func (d *demo) laggard(b *schedule.Builder) (schedule.RunFunc, error) {
	pings, err := message.ReaderFor[Ping](b)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		tick, _ := schedule.TickFromContext(ctx)
		if d.lagEvery == 0 || tick%d.lagEvery != 0 {
			return nil
		}
		before := pings.Cursor().Missed()
		n := 0
		for range pings.Read() {
			n++
		}
		b.Logger().InfoContext(ctx, "laggard caught up",
			slog.Int("read", n),
			logger.Missed(pings.Cursor().Missed()-before))
		return nil
	}, nil
}
