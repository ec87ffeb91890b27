package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkers(t *testing.T) {
	n := DefaultWorkers()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, MaxDefaultWorkers)
}

func TestRunsEveryJob(t *testing.T) {
	p := New(context.Background(), 3, nil)

	var count atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(Job{Name: "count", Run: func(ctx context.Context) error {
			count.Add(1)
			return nil
		}}))
	}
	p.Close()

	assert.Equal(t, int32(50), count.Load())
	assert.Equal(t, 0, p.Pending())
}

func TestBoundedConcurrency(t *testing.T) {
	const workers = 2
	p := New(context.Background(), workers, nil)

	var running, peak atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(Job{Name: "slow", Run: func(ctx context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}}))
	}
	p.Close()

	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestSubmitDoesNotBlock(t *testing.T) {
	p := New(context.Background(), 1, nil)
	release := make(chan struct{})

	require.NoError(t, p.Submit(Job{Name: "block", Run: func(ctx context.Context) error {
		<-release
		return nil
	}}))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = p.Submit(Job{Name: "queued", Run: func(ctx context.Context) error { return nil }})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked while the only worker was busy")
	}

	close(release)
	p.Close()
}

func TestDoneReceivesErrorsAndPanics(t *testing.T) {
	p := New(context.Background(), 2, nil)

	var mu sync.Mutex
	results := map[string]error{}
	record := func(name string) func(error) {
		return func(err error) {
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}
	}

	boom := errors.New("boom")
	require.NoError(t, p.Submit(Job{Name: "ok", Run: func(ctx context.Context) error { return nil }, Done: record("ok")}))
	require.NoError(t, p.Submit(Job{Name: "fails", Run: func(ctx context.Context) error { return boom }, Done: record("fails")}))
	require.NoError(t, p.Submit(Job{Name: "panics", Run: func(ctx context.Context) error { panic("bad page") }, Done: record("panics")}))
	p.Close()

	assert.NoError(t, results["ok"])
	assert.ErrorIs(t, results["fails"], boom)
	require.Error(t, results["panics"])
	assert.Contains(t, results["panics"].Error(), "bad page")
}

func TestSubmitAfterClose(t *testing.T) {
	p := New(context.Background(), 1, nil)
	p.Close()

	err := p.Submit(Job{Name: "late", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrClosed)

	open := New(context.Background(), 1, nil)
	defer open.Close()
	assert.Error(t, open.Submit(Job{Name: "no run func"}))
}

func TestJobsReceiveContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "magsplit")
	p := New(ctx, 1, nil)

	var got atomic.Value
	require.NoError(t, p.Submit(Job{Name: "ctx", Run: func(ctx context.Context) error {
		got.Store(ctx.Value(key{}))
		return nil
	}}))
	p.Close()

	assert.Equal(t, "magsplit", got.Load())
}
