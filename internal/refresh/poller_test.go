package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, 30*time.Second, config.Interval)
	require.Positive(t, config.MaxInFlight)
}

func TestPollerDeliversInitialFetch(t *testing.T) {
	results := make(chan Result[string], 4)
	p := NewPoller(Config{Interval: time.Hour}, func(ctx context.Context) (string, error) {
		return "rows", nil
	}, func(r Result[string]) { results <- r })

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	select {
	case r := <-results:
		require.Equal(t, uint64(1), r.Seq)
		require.Equal(t, "rows", r.Value)
		require.NoError(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestPollerDropsStaleResponse(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	results := make(chan Result[string], 4)

	p := NewPoller(Config{Interval: time.Hour, MaxInFlight: 4}, func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-release
			return "stale", nil
		}
		return "fresh", nil
	}, func(r Result[string]) { results <- r })

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.RefreshNow())

	select {
	case r := <-results:
		require.Equal(t, "fresh", r.Value)
		require.Equal(t, uint64(2), r.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}

	close(release)
	require.Eventually(t, func() bool { return p.Dropped() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, uint64(2), p.LastSeq())
	require.Empty(t, results)
}

func TestPollerStopCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	var delivered atomic.Int32

	p := NewPoller(Config{Interval: time.Hour}, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(Result[int]) { delivered.Add(1) })

	require.NoError(t, p.Start(context.Background()))
	<-started

	done := make(chan struct{})
	go func() {
		require.NoError(t, p.Stop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not cancel in-flight fetch")
	}
	require.Zero(t, delivered.Load())
	require.False(t, p.IsRunning())
}

func TestPollerDeliversErrors(t *testing.T) {
	boom := errors.New("backend down")
	results := make(chan Result[int], 1)
	p := NewPoller(Config{Interval: time.Hour}, func(ctx context.Context) (int, error) {
		return 0, boom
	}, func(r Result[int]) { results <- r })

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	select {
	case r := <-results:
		require.ErrorIs(t, r.Err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestPollerLifecycleErrors(t *testing.T) {
	p := NewPoller(Config{Interval: time.Hour}, func(ctx context.Context) (int, error) { return 1, nil }, nil)

	require.ErrorIs(t, p.Stop(), ErrPollerNotRunning)
	require.ErrorIs(t, p.RefreshNow(), ErrPollerNotRunning)

	require.NoError(t, p.Start(context.Background()))
	require.ErrorIs(t, p.Start(context.Background()), ErrPollerAlreadyRunning)
	require.NoError(t, p.Stop())
}

func TestPollerTicks(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(Config{Interval: 10 * time.Millisecond}, func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, nil)

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop())
}

func TestPollerTriggerAfterStopIsNoop(t *testing.T) {
	var calls atomic.Int32
	delivered := make(chan Result[int], 4)
	p := NewPoller(Config{Interval: time.Hour}, func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, func(r Result[int]) { delivered <- r })

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	<-delivered
	require.NoError(t, p.Stop())

	// A RefreshNow that read the context before Stop lands here afterwards.
	p.trigger(context.Background())
	p.wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	require.Empty(t, delivered)
	require.Equal(t, uint64(1), p.LastSeq())
}

func TestPollerRefreshNowRacingStop(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(Config{Interval: time.Hour, MaxInFlight: 64}, func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, nil)
	require.NoError(t, p.Start(context.Background()))

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for {
				select {
				case <-done:
					return
				default:
					_ = p.RefreshNow()
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Stop())
	stopped := calls.Load()
	close(done)

	time.Sleep(10 * time.Millisecond)
	require.False(t, p.IsRunning())
	require.Equal(t, stopped, calls.Load())
}
