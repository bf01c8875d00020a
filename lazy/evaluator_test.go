package lazy

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeConcatenatesBlocks(t *testing.T) {
	a, err := Arange("ids", 10, []uint64{4, 4, 2})
	require.NoError(t, err)

	e := NewEvaluator(WithWorkers(2))
	v, err := e.Compute(context.Background(), a)
	require.NoError(t, err)

	want := make([]int64, 10)
	for i := range want {
		want[i] = int64(i)
	}
	assert.Equal(t, want, v)
}

func TestComputeMemoizesByName(t *testing.T) {
	var reads int64
	read := func(start, count uint64) (interface{}, error) {
		atomic.AddInt64(&reads, 1)
		out := make([]float32, count)
		for i := range out {
			out[i] = float32(start) + float32(i)
		}
		return out, nil
	}

	a, err := New("same", []uint64{8}, []uint64{4, 4}, read)
	require.NoError(t, err)
	b, err := New("same", []uint64{8}, []uint64{4, 4}, read)
	require.NoError(t, err)

	e := NewEvaluator()
	first, err := e.Compute(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&reads))
	assert.True(t, e.Cached("same"))

	// Same name, different instance: served from the memo.
	second, err := e.Compute(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&reads))
	assert.Equal(t, first, second)
}

func TestComputeReadError(t *testing.T) {
	boom := errors.New("disk gone")
	read := func(start, count uint64) (interface{}, error) {
		if start > 0 {
			return nil, boom
		}
		return make([]int64, count), nil
	}
	a, err := New("bad", []uint64{8}, []uint64{4, 4}, read)
	require.NoError(t, err)

	e := NewEvaluator(WithWorkers(1))
	_, err = e.Compute(context.Background(), a)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, e.Cached("bad"), "failed computations must not be memoized")
}

func TestComputeEmptyArray(t *testing.T) {
	read := func(start, count uint64) (interface{}, error) {
		return make([]uint16, count), nil
	}
	a, err := New("empty", []uint64{0}, nil, read)
	require.NoError(t, err)

	v, err := NewEvaluator().Compute(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, []uint16{}, v)
}
