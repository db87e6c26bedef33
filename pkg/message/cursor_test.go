package message_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tickbus/pkg/logger"
	"github.com/dmitrymomot/tickbus/pkg/message"
)

func seqs(r *message.Reader[Ping]) []int {
	var out []int
	for p := range r.Read() {
		out = append(out, p.Seq)
	}
	return out
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func TestCursor_AttachSkipsHistory(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	a := message.NewReader(q, nil)

	for i := range 3 {
		q.Send(Ping{Seq: i})
	}
	b := message.NewReader(q, nil)
	q.Rotate()

	assert.Equal(t, []int{0, 1, 2}, seqs(a))
	assert.Equal(t, message.ID(3), a.Cursor().Position())

	assert.Empty(t, seqs(b))
	assert.Equal(t, message.ID(3), b.Cursor().Position())
}

func TestCursor_ZeroValueReplaysRetained(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	q.Send(Ping{Seq: 1})
	q.Rotate()
	q.Send(Ping{Seq: 2})

	r := message.NewReader(q, &message.Cursor[Ping]{})
	assert.Equal(t, []int{1, 2}, seqs(r))
}

func TestCursor_ReadIsOneShot(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	r := message.NewReader(q, nil)
	q.SendBatch(Ping{Seq: 1}, Ping{Seq: 2})

	seq := r.Read()
	assert.Equal(t, 0, r.Len(), "cursor advances when Read is called, not when iterated")

	var first []int
	for p := range seq {
		first = append(first, p.Seq)
	}
	assert.Equal(t, []int{1, 2}, first)

	for range seq {
		t.Fatal("exhausted sequence must not restart")
	}
	assert.Empty(t, seqs(r))
}

func TestCursor_BreakKeepsRestConsumed(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	r := message.NewReader(q, nil)
	q.SendBatch(Ping{Seq: 1}, Ping{Seq: 2}, Ping{Seq: 3})

	it := r.Iter()
	for p := range it.All() {
		if p.Seq == 1 {
			break
		}
	}
	assert.Equal(t, 2, it.Len())
	assert.Equal(t, []Ping{{Seq: 2}, {Seq: 3}}, it.Collect())
	assert.True(t, r.IsEmpty())
}

func TestCursor_ReadWithID(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	q.Send(Ping{Seq: 10})
	r := message.NewReader(q, nil)
	q.Send(Ping{Seq: 11})
	q.Rotate()
	q.Send(Ping{Seq: 12})

	var ids []message.ID
	var got []int
	for id, p := range r.ReadWithID() {
		ids = append(ids, id)
		got = append(got, p.Seq)
	}
	assert.Equal(t, []message.ID{1, 2}, ids)
	assert.Equal(t, []int{11, 12}, got)
}

func TestCursor_NextWithID(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	r := message.NewReader(q, nil)
	q.Send(Ping{Seq: 1})
	q.Rotate()
	q.Send(Ping{Seq: 2})

	it := r.Iter()
	id, p, ok := it.NextWithID()
	require.True(t, ok)
	assert.Equal(t, message.ID(0), id)
	assert.Equal(t, 1, p.Seq)

	p, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, 2, p.Seq)

	_, ok = it.Next()
	assert.False(t, ok)
}

func TestCursor_LenIsIdempotent(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	r := message.NewReader(q, nil)
	q.SendBatch(Ping{}, Ping{}, Ping{})
	q.Rotate()
	q.Send(Ping{})

	for range 5 {
		assert.Equal(t, 4, r.Len())
		assert.False(t, r.IsEmpty())
		assert.Equal(t, message.ID(0), r.Cursor().Position())
	}
}

func TestCursor_Clear(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	r := message.NewReader(q, nil)
	q.SendBatch(Ping{Seq: 1}, Ping{Seq: 2})

	r.Clear()
	assert.True(t, r.IsEmpty())
	assert.Empty(t, seqs(r))

	q.Send(Ping{Seq: 3})
	assert.Equal(t, []int{3}, seqs(r))
}

func TestCursor_RotationDropLaw(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	q := message.NewQueue[Ping](message.WithLogger(logger.New(logger.WithOutput(buf))))
	r := message.NewReader(q, nil)

	// tick 1: five messages, nobody reads
	for i := range 5 {
		q.Send(Ping{Seq: i})
	}
	q.Rotate()
	// tick 2: nothing
	q.Rotate()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, seqs(r))
	assert.Equal(t, uint64(5), r.Cursor().Missed())
	assert.Equal(t, message.ID(5), r.Cursor().Position())
	assert.Equal(t, uint64(5), q.Stats().Missed)

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "reader missed messages", lines[0]["msg"])
	assert.Equal(t, "message_test.Ping", lines[0]["message_type"])
	assert.Equal(t, float64(5), lines[0]["missed"])
}

func TestCursor_PartialLossClampsForward(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	r := message.NewReader(q, nil)

	q.SendBatch(Ping{Seq: 0}, Ping{Seq: 1})
	q.Rotate()
	q.SendBatch(Ping{Seq: 2}, Ping{Seq: 3})
	q.Rotate()
	q.Send(Ping{Seq: 4})

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{2, 3, 4}, seqs(r))
	assert.Equal(t, uint64(2), r.Cursor().Missed())
}

func TestCursor_ClearAllIsNotLoss(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	q := message.NewQueue[Ping](message.WithLogger(logger.New(logger.WithOutput(buf))))
	r := message.NewReader(q, nil)

	q.SendBatch(Ping{}, Ping{})
	q.ClearAll()
	q.Send(Ping{Seq: 7})

	assert.Equal(t, []int{7}, seqs(r))
	assert.Zero(t, r.Cursor().Missed())
	assert.Empty(t, buf.String())
}

func TestCursor_LossAfterClearCountsOnlyRotatedOut(t *testing.T) {
	t.Parallel()

	q := message.NewQueue[Ping]()
	r := message.NewReader(q, nil)

	q.SendBatch(Ping{}, Ping{}, Ping{})
	q.ClearAll()
	q.SendBatch(Ping{}, Ping{})
	q.Rotate()
	q.Rotate()

	assert.Empty(t, seqs(r))
	assert.Equal(t, uint64(2), r.Cursor().Missed())
}

func TestCursor_OrderPreservation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	q := message.NewQueue[Ping]()
	r := message.NewReader(q, nil)

	var want, got []message.ID
	for range 200 {
		n := rng.IntN(8)
		for range n {
			want = append(want, q.Send(Ping{}))
		}
		if rng.IntN(3) == 0 {
			// occasionally read mid-tick as well
			for id := range r.ReadWithID() {
				got = append(got, id)
			}
		}
		q.Rotate()
		for id := range r.ReadWithID() {
			got = append(got, id)
		}
	}

	assert.Equal(t, want, got)
	assert.True(t, slices.IsSorted(got))
	assert.Zero(t, r.Cursor().Missed())
}
