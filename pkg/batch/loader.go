package batch

import (
	"context"
	"fmt"
	"iter"
	"math/rand"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/config"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
	"golang.org/x/sync/errgroup"
)

// Loader serves sequences as collated batches.
//
// With NumWorkers > 0, examples are built and collated on a pool of background
// goroutines that run at most 2*NumWorkers batches ahead of the consumer.
// Batches are always yielded in order.
type Loader struct {
	data      []sequence.Sequence
	columnSeq []string

	maxSeqLen int
	batchSize int
	workers   int
	pinMemory bool

	rng *rand.Rand
}

// NewLoader returns a Loader over data. When shuffle is set every call to
// Batches visits data in a new order drawn from cfg.Seed.
func NewLoader(cfg config.Config, data []sequence.Sequence, columnSeq []string, shuffle bool) *Loader {
	l := &Loader{
		data:      data,
		columnSeq: append([]string(nil), columnSeq...),
		maxSeqLen: cfg.MaxSeqLen,
		batchSize: cfg.BatchSize,
		workers:   cfg.NumWorkers,
		pinMemory: cfg.PinMemory,
	}
	if shuffle {
		l.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return l
}

// Len returns the number of batches per pass.
func (l *Loader) Len() int {
	return (len(l.data) + l.batchSize - 1) / l.batchSize
}

// PinMemory reports the pin_memory setting. Batches live in ordinary heap
// memory either way.
func (l *Loader) PinMemory() bool {
	return l.pinMemory
}

func (l *Loader) chunks() [][]int {
	order := make([]int, len(l.data))
	if l.rng != nil {
		order = l.rng.Perm(len(l.data))
	} else {
		for i := range order {
			order[i] = i
		}
	}

	chunks := make([][]int, 0, l.Len())
	for start := 0; start < len(order); start += l.batchSize {
		end := min(start+l.batchSize, len(order))
		chunks = append(chunks, order[start:end])
	}
	return chunks
}

func (l *Loader) build(chunk []int) (*Batch, error) {
	examples := make([]Example, len(chunk))
	for i, idx := range chunk {
		example, err := BuildExample(l.data[idx], l.maxSeqLen, l.columnSeq)
		if err != nil {
			return nil, err
		}
		examples[i] = example
	}
	return Collate(examples)
}

type result struct {
	batch *Batch
	err   error
}

// Batches yields one pass over the data. Iteration stops after the first error.
func (l *Loader) Batches(ctx context.Context) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		chunks := l.chunks()

		if l.workers == 0 {
			for i, chunk := range chunks {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				b, err := l.build(chunk)
				if err != nil {
					err = fmt.Errorf("batch %d: %w", i, err)
				}
				if !yield(b, err) || err != nil {
					return
				}
			}
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.workers)

		results := make([]chan result, len(chunks))
		for i := range results {
			results[i] = make(chan result, 1)
		}
		tokens := make(chan struct{}, 2*l.workers)

		dispatched := make(chan struct{})
		go func() {
			defer close(dispatched)
			for i, chunk := range chunks {
				select {
				case tokens <- struct{}{}:
				case <-gctx.Done():
					return
				}
				g.Go(func() error {
					b, err := l.build(chunk)
					if err != nil {
						err = fmt.Errorf("batch %d: %w", i, err)
					}
					results[i] <- result{batch: b, err: err}
					return err
				})
			}
		}()

		defer func() {
			cancel()
			<-dispatched
			_ = g.Wait()
		}()

		for i := range chunks {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			var r result
			select {
			case r = <-results[i]:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
			<-tokens

			if !yield(r.batch, r.err) || r.err != nil {
				return
			}
		}
	}
}
