package worker_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/core"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/worker"
)

func TestProcessAll_ReturnsInputOrder(t *testing.T) {
	t.Parallel()

	fn := core.ProcessFunc[int, int](func(_ context.Context, n int) (int, error) {
		// Later items finish first.
		time.Sleep(time.Duration(5-n) * time.Millisecond)
		return n * n, nil
	})

	out, err := worker.ProcessAll(context.Background(), []int{1, 2, 3, 4}, fn, worker.Options{Workers: 4})
	require.NoError(t, err)
	require.Len(t, out, 4)
	for i, res := range out {
		assert.Equal(t, i+1, res.Input)
		assert.Equal(t, (i+1)*(i+1), res.Output)
		assert.NoError(t, res.Err)
	}
}

func TestProcessAll_FailFastStops(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := core.ProcessFunc[string, string](func(_ context.Context, id string) (string, error) {
		calls.Add(1)
		if id == "bad1-0001" {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	out, err := worker.ProcessAll(context.Background(), []string{"bad1-0001", "good-0002"}, fn, worker.Options{
		Workers:       1,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	require.EqualError(t, err, "boom")
	assert.Nil(t, out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProcessAll_PartialOutputContinues(t *testing.T) {
	t.Parallel()

	fn := core.ProcessFunc[string, string](func(_ context.Context, id string) (string, error) {
		if id == "bad1-0001" {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	out, err := worker.ProcessAll(context.Background(), []string{"bad1-0001", "good-0002"}, fn, worker.Options{
		Workers:       1,
		FailurePolicy: worker.FailurePolicyPartialOutput,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.EqualError(t, out[0].Err, "boom")
	assert.NoError(t, out[1].Err)
	assert.Equal(t, "ok", out[1].Output)
}

func TestProcessAll_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	fn := core.ProcessFunc[int, int](func(_ context.Context, n int) (int, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return n, nil
	})

	items := make([]int, 40)
	for i := range items {
		items[i] = i
	}
	_, err := worker.ProcessAll(context.Background(), items, fn, worker.Options{Workers: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestProcessAll_RequestTimeoutIsPerItem(t *testing.T) {
	t.Parallel()

	fn := core.ProcessFunc[string, string](func(ctx context.Context, id string) (string, error) {
		if id == "slow-0001" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ok", nil
	})

	out, err := worker.ProcessAll(context.Background(), []string{"slow-0001", "fast-0002"}, fn, worker.Options{
		Workers:        2,
		RequestTimeout: 20 * time.Millisecond,
		BatchTimeout:   5 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.ErrorIs(t, out[0].Err, context.DeadlineExceeded)
	assert.Equal(t, "ok", out[1].Output)
}

func TestProcessAll_BatchTimeoutAbortsBatch(t *testing.T) {
	t.Parallel()

	fn := core.ProcessFunc[string, string](func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	out, err := worker.ProcessAll(context.Background(), []string{"a000-0001", "b000-0002", "c000-0003"}, fn, worker.Options{
		Workers:        1,
		RequestTimeout: 5 * time.Second,
		BatchTimeout:   30 * time.Millisecond,
	})
	require.ErrorIs(t, err, worker.ErrBatchTimeout)
	assert.Nil(t, out)
}

func TestProcessAll_EmptyInput(t *testing.T) {
	t.Parallel()

	fn := core.ProcessFunc[string, string](func(context.Context, string) (string, error) {
		t.Error("processor must not be called")
		return "", nil
	})
	out, err := worker.ProcessAll(context.Background(), nil, fn, worker.Options{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestProcessAllWithCallback_CompletesInCompletionOrder(t *testing.T) {
	t.Parallel()

	releaseSlow := make(chan struct{})
	startedSlow := make(chan struct{})
	var firstCallbackInput atomic.Value
	firstCallbackInput.Store("")

	fn := core.ProcessFunc[string, string](func(_ context.Context, id string) (string, error) {
		if id == "slow-0001" {
			close(startedSlow)
			<-releaseSlow
		}
		return id, nil
	})

	var mu sync.Mutex
	var seen []string
	doneErr := make(chan error, 1)
	go func() {
		_, err := worker.ProcessAllWithCallback(
			context.Background(),
			[]string{"slow-0001", "fast-0002"},
			fn,
			func(res worker.Result[string, string]) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, res.Input)
				if len(seen) == 1 {
					firstCallbackInput.Store(res.Input)
				}
				return nil
			},
			worker.Options{Workers: 2},
		)
		doneErr <- err
	}()

	select {
	case <-startedSlow:
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for slow task to start")
	}

	require.Eventually(t, func() bool {
		return firstCallbackInput.Load().(string) == "fast-0002"
	}, time.Second, 10*time.Millisecond)

	close(releaseSlow)
	select {
	case err := <-doneErr:
		require.NoError(t, err)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, slices.Equal(seen, []string{"fast-0002", "slow-0001"}), "unexpected callback order: %v", seen)
}

func TestProcessAllWithCallback_CallbackErrorStopsRun(t *testing.T) {
	t.Parallel()

	callbackErr := errors.New("callback failed")
	_, err := worker.ProcessAllWithCallback(
		context.Background(),
		[]string{"abcd-1234"},
		core.ProcessFunc[string, string](func(_ context.Context, id string) (string, error) {
			return id, nil
		}),
		func(worker.Result[string, string]) error {
			return callbackErr
		},
		worker.Options{Workers: 1},
	)
	require.ErrorIs(t, err, callbackErr)
}

func TestProcessAll_RateLimitSpacesCalls(t *testing.T) {
	t.Parallel()

	const (
		items = 6
		rps   = 50.0
	)
	fn := core.ProcessFunc[int, int](func(_ context.Context, n int) (int, error) {
		return n, nil
	})

	in := make([]int, items)
	for i := range in {
		in[i] = i
	}
	start := time.Now()
	out, err := worker.ProcessAll(context.Background(), in, fn, worker.Options{Workers: items, RateLimitRPS: rps})
	require.NoError(t, err)
	require.Len(t, out, items)

	// Burst of one: the first call is immediate, every later call waits 1/rps.
	minElapsed := time.Duration(float64(items-1) / rps * float64(time.Second))
	assert.GreaterOrEqual(t, time.Since(start), minElapsed-5*time.Millisecond)
}
