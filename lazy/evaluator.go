package lazy

import (
	"context"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Evaluator computes lazy arrays, reading blocks in parallel and memoizing
// results by array name. Arrays sharing a name share one computation, which
// makes repeated loads of the same dataset cheap as long as the names are
// derived deterministically.
type Evaluator struct {
	workers int

	mu   sync.Mutex
	memo map[string]interface{}
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithWorkers limits the number of blocks evaluated concurrently per array.
func WithWorkers(n int) EvaluatorOption {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEvaluator creates an evaluator with an empty memo.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		workers: 4,
		memo:    make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute evaluates the array fully and returns its values as one flat
// slice in row-major order. Results are memoized by name: a second call
// with any array of the same name returns the cached value without reading.
func (e *Evaluator) Compute(ctx context.Context, a *Array) (interface{}, error) {
	e.mu.Lock()
	if v, ok := e.memo[a.name]; ok {
		e.mu.Unlock()
		return v, nil
	}
	e.mu.Unlock()

	v, err := e.compute(ctx, a)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.memo[a.name] = v
	e.mu.Unlock()
	return v, nil
}

// Cached reports whether a result for name is already memoized.
func (e *Evaluator) Cached(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.memo[name]
	return ok
}

func (e *Evaluator) compute(ctx context.Context, a *Array) (interface{}, error) {
	n := a.NumBlocks()
	if n == 0 {
		// Empty array: ask the reader for a typed empty slice.
		return a.read(0, 0)
	}

	blocks := make([]interface{}, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			b, err := a.ReadBlock(i)
			if err != nil {
				return err
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return concatBlocks(a, blocks)
}

// concatBlocks joins per-block flat slices into one flat slice.
func concatBlocks(a *Array, blocks []interface{}) (interface{}, error) {
	if len(blocks) == 1 {
		return blocks[0], nil
	}

	first := reflect.ValueOf(blocks[0])
	if first.Kind() != reflect.Slice {
		return nil, errors.Errorf("lazy: block of %q is %s, not a slice", a.name, first.Kind())
	}

	total := 0
	for _, b := range blocks {
		total += reflect.ValueOf(b).Len()
	}

	out := reflect.MakeSlice(first.Type(), 0, total)
	for _, b := range blocks {
		bv := reflect.ValueOf(b)
		if bv.Type() != first.Type() {
			return nil, errors.Errorf("lazy: mixed block types in %q: %s vs %s",
				a.name, bv.Type(), first.Type())
		}
		out = reflect.AppendSlice(out, bv)
	}
	return out.Interface(), nil
}
