package worker

import "context"

// BatchFunc processes one item of a batch
type BatchFunc[T, R any] func(ctx context.Context, item T) (R, error)

// itemJob carries the item's position so results can be replayed in input order
type itemJob[T, R any] struct {
	index int
	item  T
	fn    BatchFunc[T, R]
}

// Execute runs the batch function on the item
func (j *itemJob[T, R]) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &BatchResult[R]{Index: j.index, Error: err}
	}
	value, err := j.fn(ctx, j.item)
	return &BatchResult[R]{Index: j.index, Value: value, Error: err}
}

// BatchResult is the outcome of one item
type BatchResult[R any] struct {
	Index int
	Value R
	Error error
}

// GetError returns the error from the item
func (r *BatchResult[R]) GetError() error {
	return r.Error
}

// BatchProcessor applies a function to many items concurrently
type BatchProcessor[T, R any] struct {
	fn          BatchFunc[T, R]
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor[T, R any](fn BatchFunc[T, R], concurrency int) *BatchProcessor[T, R] {
	return &BatchProcessor[T, R]{
		fn:          fn,
		concurrency: concurrency,
	}
}

// Process runs fn over items and returns one result per item, in input
// order regardless of completion order. Items not started before ctx is
// cancelled are reported with ctx's error.
func (b *BatchProcessor[T, R]) Process(ctx context.Context, items []T) []*BatchResult[R] {
	if len(items) == 0 {
		return []*BatchResult[R]{}
	}

	pool := NewPool(ctx, b.concurrency)

	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &itemJob[T, R]{index: i, item: item, fn: b.fn}
	}

	out := make([]*BatchResult[R], len(items))
	for _, r := range pool.Run(jobs) {
		br := r.(*BatchResult[R])
		out[br.Index] = br
	}

	for i := range out {
		if out[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &BatchResult[R]{Index: i, Error: err}
		}
	}
	return out
}

// Chunk splits items into consecutive slices of at most size elements
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
