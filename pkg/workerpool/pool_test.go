package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/workerpool"
)

func TestRunExecutesAllJobsAndPreservesOrder(t *testing.T) {
	jobs := make([]workerpool.Job, 5)
	for i := 0; i < 5; i++ {
		i := i
		jobs[i] = func(ctx context.Context) (any, error) { return i * i, nil }
	}

	results := workerpool.Run(context.Background(), jobs, 2)
	require.Len(t, results, 5)
	for i, r := range results {
		require.Equal(t, i, r.Index)
		require.NoError(t, r.Err)
		require.Equal(t, i*i, r.Value)
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, maxSeen int64
	jobs := make([]workerpool.Job, 10)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) (any, error) {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				m := atomic.LoadInt64(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt64(&maxSeen, m, n) {
					break
				}
			}
			atomic.AddInt64(&inFlight, -1)
			return nil, nil
		}
	}

	workerpool.Run(context.Background(), jobs, 3)
	require.LessOrEqual(t, atomic.LoadInt64(&maxSeen), int64(3))
}

func TestRunPropagatesJobErrors(t *testing.T) {
	boom := errors.New("boom")
	jobs := []workerpool.Job{
		func(ctx context.Context) (any, error) { return nil, boom },
		func(ctx context.Context) (any, error) { return 1, nil },
	}
	results := workerpool.Run(context.Background(), jobs, 0)
	require.ErrorIs(t, results[0].Err, boom)
	require.NoError(t, results[1].Err)
}

func TestRunWithNoJobsReturnsEmpty(t *testing.T) {
	results := workerpool.Run(context.Background(), nil, 4)
	require.Empty(t, results)
}
