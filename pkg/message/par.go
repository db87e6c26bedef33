package message

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParIter is a consumed range of messages split into contiguous chunks.
//
// Every message of the range appears in exactly one chunk and IDs ascend
// within a chunk. Chunks never straddle the previous/current boundary.
// Chunk order relative to each other is not guaranteed once they are handed
// to workers. Payload pointers stay valid until the next Rotate.
type ParIter[T any] struct {
	batches [][]Instance[T]
	n       int
	workers int
}

func newParIter[T any](prev, cur []Instance[T], o parOptions) *ParIter[T] {
	n := len(prev) + len(cur)
	p := &ParIter[T]{n: n, workers: o.workerCount()}
	if n == 0 {
		return p
	}
	size := o.size(n)
	p.batches = make([][]Instance[T], 0, (len(prev)+size-1)/size+(len(cur)+size-1)/size)
	p.batches = appendChunks(p.batches, prev, size)
	p.batches = appendChunks(p.batches, cur, size)
	return p
}

func appendChunks[T any](dst [][]Instance[T], gen []Instance[T], size int) [][]Instance[T] {
	for len(gen) > 0 {
		k := min(size, len(gen))
		dst = append(dst, gen[:k:k])
		gen = gen[k:]
	}
	return dst
}

// Len returns the total number of messages across all chunks.
func (p *ParIter[T]) Len() int {
	return p.n
}

// Batches returns the chunks in ascending ID order.
func (p *ParIter[T]) Batches() [][]Instance[T] {
	return p.batches
}

// ForEach calls fn for every payload, running chunks concurrently.
// It returns after every chunk has been processed.
func (p *ParIter[T]) ForEach(fn func(*T)) {
	_ = p.ForEachBatch(context.Background(), func(_ context.Context, batch []Instance[T]) error {
		for i := range batch {
			fn(&batch[i].Payload)
		}
		return nil
	})
}

// ForEachWithID is like ForEach but also passes each message's ID.
func (p *ParIter[T]) ForEachWithID(fn func(ID, *T)) {
	_ = p.ForEachBatch(context.Background(), func(_ context.Context, batch []Instance[T]) error {
		for i := range batch {
			fn(batch[i].ID, &batch[i].Payload)
		}
		return nil
	})
}

// ForEachBatch hands each chunk to fn on a bounded pool of goroutines.
// All chunks run to completion even if one fails, since the cursor has already
// moved past them; the first error is returned.
func (p *ParIter[T]) ForEachBatch(ctx context.Context, fn func(context.Context, []Instance[T]) error) error {
	switch len(p.batches) {
	case 0:
		return nil
	case 1:
		return fn(ctx, p.batches[0])
	}

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, batch := range p.batches {
		g.Go(func() error {
			return fn(ctx, batch)
		})
	}
	return g.Wait()
}
