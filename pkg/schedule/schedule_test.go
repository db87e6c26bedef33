package schedule_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/message"
	"github.com/dmitrymomot/tickbus/pkg/schedule"
)

type Ping struct {
	Seq int
}

type Pong struct {
	Seq int
}

func newWorld(t *testing.T) *schedule.World {
	t.Helper()
	w := schedule.NewWorld()
	message.MustRegister[Ping](w.Registry())
	message.MustRegister[Pong](w.Registry())
	return w
}

func sender(n int) schedule.SetupFunc {
	return func(b *schedule.Builder) (schedule.RunFunc, error) {
		pings, err := message.WriterFor[Ping](b)
		if err != nil {
			return nil, err
		}
		next := 0
		return func(context.Context) error {
			for range n {
				pings.Send(Ping{Seq: next})
				next++
			}
			return nil
		}, nil
	}
}

func collector(got *[]int) schedule.SetupFunc {
	return func(b *schedule.Builder) (schedule.RunFunc, error) {
		pings, err := message.ReaderFor[Ping](b)
		if err != nil {
			return nil, err
		}
		return func(context.Context) error {
			for p := range pings.Read() {
				*got = append(*got, p.Seq)
			}
			return nil
		}, nil
	}
}

func TestSchedule_WriterThenReader(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w)

	var got []int
	require.NoError(t, s.Add("send", sender(3)))
	require.NoError(t, s.Add("collect", collector(&got)))

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rep.Tick)
	assert.Equal(t, []string{"send", "collect"}, rep.Ran)
	assert.Equal(t, 2, rep.Batches)
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, uint64(1), w.Tick())

	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
}

func TestSchedule_ReaderBeforeWriterSeesPreviousTick(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w)

	var got []int
	s.MustAdd("collect", collector(&got))
	s.MustAdd("send", sender(2))

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, got)
}

func TestSchedule_PopulatedReaderSkips(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w)
	pings, err := message.Lookup[Ping](w.Registry())
	require.NoError(t, err)

	var runs atomic.Int32
	var reader *message.PopulatedReader[Ping]
	s.MustAdd("gated", func(b *schedule.Builder) (schedule.RunFunc, error) {
		r, err := message.PopulatedReaderFor[Ping](b)
		if err != nil {
			return nil, err
		}
		reader = r
		return func(context.Context) error {
			runs.Add(1)
			for range r.Read() {
			}
			return nil
		}, nil
	})

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Ran)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, schedule.Skip{System: "gated", Reason: "message queue is empty"}, rep.Skipped[0])
	assert.Zero(t, runs.Load())
	assert.Equal(t, message.ID(0), reader.Cursor().Position())

	pings.Send(Ping{})
	rep, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gated"}, rep.Ran)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, message.ID(1), reader.Cursor().Position())
}

func TestSchedule_OnMessageCondition(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w)
	pongs, err := message.Lookup[Pong](w.Registry())
	require.NoError(t, err)

	var runs int
	s.MustAdd("on-pong", func(b *schedule.Builder) (schedule.RunFunc, error) {
		cond, err := message.OnMessage[Pong](b)
		if err != nil {
			return nil, err
		}
		b.RunIf(cond)
		return func(context.Context) error {
			runs++
			return nil
		}, nil
	})

	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, runs)

	pongs.Send(Pong{})
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}

func TestSchedule_RunIfWithReader(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w)
	pongs, err := message.Lookup[Pong](w.Registry())
	require.NoError(t, err)

	var got []int
	s.MustAdd("audit", func(b *schedule.Builder) (schedule.RunFunc, error) {
		cond, err := message.OnMessage[Pong](b)
		if err != nil {
			return nil, err
		}
		b.RunIf(cond)
		b.RunIf(cond)
		r, err := message.ReaderFor[Pong](b)
		if err != nil {
			return nil, err
		}
		return func(context.Context) error {
			for p := range r.Read() {
				got = append(got, p.Seq)
			}
			return nil
		}, nil
	})

	pongs.SendBatch(Pong{Seq: 1}, Pong{Seq: 2})
	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"audit"}, rep.Ran)
	assert.Equal(t, []int{1, 2}, got)

	rep, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Ran)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "no new messages", rep.Skipped[0].Reason)

	pongs.Send(Pong{Seq: 3})
	rep, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"audit"}, rep.Ran)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestSchedule_ReadersRunConcurrently(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w, schedule.WithParallel(true), schedule.WithWorkers(2))

	var barrier sync.WaitGroup
	barrier.Add(2)
	reader := func(b *schedule.Builder) (schedule.RunFunc, error) {
		r, err := message.ReaderFor[Ping](b)
		if err != nil {
			return nil, err
		}
		return func(context.Context) error {
			r.Clear()
			barrier.Done()
			done := make(chan struct{})
			go func() {
				barrier.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-time.After(2 * time.Second):
				return errors.New("peer reader did not run concurrently")
			}
		}, nil
	}

	s.MustAdd("a", reader)
	s.MustAdd("b", reader)

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Batches)
	assert.Equal(t, []string{"a", "b"}, rep.Ran)
}

func TestSchedule_Batching(t *testing.T) {
	t.Parallel()

	noop := func(build func(b *schedule.Builder) error) schedule.SetupFunc {
		return func(b *schedule.Builder) (schedule.RunFunc, error) {
			if err := build(b); err != nil {
				return nil, err
			}
			return func(context.Context) error { return nil }, nil
		}
	}
	readPing := noop(func(b *schedule.Builder) error {
		_, err := message.ReaderFor[Ping](b)
		return err
	})
	writePing := noop(func(b *schedule.Builder) error {
		_, err := message.WriterFor[Ping](b)
		return err
	})
	writePong := noop(func(b *schedule.Builder) error {
		_, err := message.WriterFor[Pong](b)
		return err
	})

	tests := []struct {
		name     string
		parallel bool
		systems  []schedule.SetupFunc
		batches  int
	}{
		{"readers share", true, []schedule.SetupFunc{readPing, readPing, readPing}, 1},
		{"writer splits", true, []schedule.SetupFunc{readPing, writePing, readPing}, 3},
		{"different types share", true, []schedule.SetupFunc{writePing, writePong}, 1},
		{"writers of one type split", true, []schedule.SetupFunc{writePing, writePing}, 2},
		{"sequential", false, []schedule.SetupFunc{readPing, readPing, writePong}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := schedule.New(newWorld(t), schedule.WithParallel(tt.parallel))
			for i, setup := range tt.systems {
				require.NoError(t, s.Add(string(rune('a'+i)), setup))
			}
			rep, err := s.RunOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.batches, rep.Batches)
			assert.Len(t, rep.Ran, len(tt.systems))
		})
	}
}

func TestSchedule_Failures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	w := newWorld(t)
	s := schedule.New(w)

	var ran bool
	s.MustAdd("fails", func(*schedule.Builder) (schedule.RunFunc, error) {
		return func(context.Context) error { return boom }, nil
	})
	s.MustAdd("panics", func(*schedule.Builder) (schedule.RunFunc, error) {
		return func(context.Context) error { panic("kaboom") }, nil
	})
	s.MustAdd("fine", func(*schedule.Builder) (schedule.RunFunc, error) {
		return func(context.Context) error {
			ran = true
			return nil
		}, nil
	})

	rep, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, schedule.ErrSystemPanicked)

	var sysErr *schedule.SystemError
	require.ErrorAs(t, err, &sysErr)
	assert.Equal(t, "fails", sysErr.System)

	assert.ElementsMatch(t, []string{"fails", "panics"}, rep.Failed)
	assert.Equal(t, []string{"fine"}, rep.Ran)
	assert.True(t, ran)
	assert.Equal(t, uint64(1), w.Tick(), "tick boundary runs even when systems fail")
}

func TestSchedule_AddErrors(t *testing.T) {
	t.Parallel()

	w := schedule.NewWorld()
	message.MustRegister[Ping](w.Registry())
	s := schedule.New(w)

	t.Run("unregistered type", func(t *testing.T) {
		err := s.Add("pong-reader", func(b *schedule.Builder) (schedule.RunFunc, error) {
			_, err := message.ReaderFor[Pong](b)
			return nil, err
		})
		assert.ErrorIs(t, err, message.ErrNotRegistered)
	})

	t.Run("nil setup", func(t *testing.T) {
		assert.ErrorIs(t, s.Add("nil", nil), schedule.ErrNilSetup)
		err := s.Add("nil-run", func(*schedule.Builder) (schedule.RunFunc, error) { return nil, nil })
		assert.ErrorIs(t, err, schedule.ErrNilSetup)
	})

	t.Run("conflicting params", func(t *testing.T) {
		err := s.Add("rw", func(b *schedule.Builder) (schedule.RunFunc, error) {
			if _, err := message.ReaderFor[Ping](b); err != nil {
				return nil, err
			}
			if _, err := message.WriterFor[Ping](b); err != nil {
				return nil, err
			}
			return func(context.Context) error { return nil }, nil
		})
		assert.ErrorIs(t, err, schedule.ErrAccessConflict)
	})

	t.Run("duplicate name", func(t *testing.T) {
		setup := func(*schedule.Builder) (schedule.RunFunc, error) {
			return func(context.Context) error { return nil }, nil
		}
		require.NoError(t, s.Add("dup", setup))
		assert.ErrorIs(t, s.Add("dup", setup), schedule.ErrDuplicateSystem)
		assert.Panics(t, func() { s.MustAdd("dup", setup) })
	})

	assert.Zero(t, w.Cursors().Len(), "failed setups leave no cursors behind")
}

func TestSchedule_Remove(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w)
	var got []int
	s.MustAdd("collect", collector(&got))
	s.MustAdd("send", sender(1))
	assert.Equal(t, 1, w.Cursors().Len())

	assert.True(t, s.Remove("collect"))
	assert.False(t, s.Remove("collect"))
	assert.Zero(t, w.Cursors().Len())
	assert.Equal(t, []string{"send"}, s.Systems())
}

func TestSchedule_TickContext(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithContextExtractors(schedule.TickExtractor))
	w := newWorld(t)
	s := schedule.New(w, schedule.WithLogger(log))

	var ticks []uint64
	s.MustAdd("tick", func(b *schedule.Builder) (schedule.RunFunc, error) {
		return func(ctx context.Context) error {
			tick, ok := schedule.TickFromContext(ctx)
			require.True(t, ok)
			ticks = append(ticks, tick)
			b.Logger().InfoContext(ctx, "tick observed")
			return nil
		}, nil
	})

	for range 3 {
		_, err := s.RunOnce(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{0, 1, 2}, ticks)
	assert.Contains(t, buf.String(), `"tick":2`)
	assert.Contains(t, buf.String(), `"system":"tick"`)

	_, ok := schedule.TickFromContext(context.Background())
	assert.False(t, ok)
}

func TestSchedule_RunOnceCanceled(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, w.Tick())
}

func TestSchedule_Run(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w, schedule.WithTickInterval(time.Millisecond))

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	s.MustAdd("count", func(*schedule.Builder) (schedule.RunFunc, error) {
		return func(context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}
			return nil
		}, nil
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
	assert.GreaterOrEqual(t, w.Tick(), uint64(3))
}

func TestWorld_Snapshot(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	assert.Zero(t, w.Snapshot().Tick)

	pings, err := message.Lookup[Ping](w.Registry())
	require.NoError(t, err)
	pings.SendBatch(Ping{}, Ping{})
	w.Update()

	snap := w.Snapshot()
	assert.Equal(t, uint64(1), snap.Tick)
	st, ok := snap.Find("schedule_test.Ping")
	require.True(t, ok)
	assert.Equal(t, uint64(2), st.Sent)
	assert.Equal(t, 2, st.Previous)

	_, ok = snap.Find("nope")
	assert.False(t, ok)
}

func TestWorld_Subscribe(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := w.Subscribe(ctx)

	w.Update()
	w.Update()

	for _, want := range []uint64{1, 2} {
		select {
		case snap := <-sub.Receive():
			assert.Equal(t, want, snap.Tick)
		case <-time.After(time.Second):
			t.Fatal("no snapshot published")
		}
	}

	require.NoError(t, w.Close())
	_, ok := <-sub.Receive()
	assert.False(t, ok)
}

func TestConfigOption(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	s := schedule.New(w, schedule.WithConfig(schedule.Config{Parallel: false, TickInterval: time.Second}))
	var got []int
	s.MustAdd("a", collector(&got))
	s.MustAdd("b", collector(&got))

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Batches)
}
