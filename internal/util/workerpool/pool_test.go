package workerpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerPool_SingleWorkerPreservesOrder(t *testing.T) {
	p := New(Config{Name: "ordered", MaxWorkers: 1, QueueSize: 100, Logger: zap.NewNop()})

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, p.Submit(Task{Name: "append", Fn: func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}}))
	}

	require.NoError(t, p.Stop(time.Second))

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, uint64(50), p.Stats().Completed)
}

func TestWorkerPool_QueueFull(t *testing.T) {
	p := New(Config{Name: "tiny", MaxWorkers: 1, QueueSize: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(Task{Fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	require.NoError(t, p.Submit(Task{Fn: func(context.Context) error { return nil }}))
	assert.ErrorIs(t, p.Submit(Task{Fn: func(context.Context) error { return nil }}), ErrQueueFull)

	close(release)
	require.NoError(t, p.Stop(time.Second))
	assert.Equal(t, uint64(1), p.Stats().Rejected)
}

func TestWorkerPool_FailuresAndPanicsAreContained(t *testing.T) {
	p := New(Config{Name: "faulty", MaxWorkers: 2, QueueSize: 10})

	require.NoError(t, p.Submit(Task{Fn: func(context.Context) error { return errors.New("boom") }}))
	require.NoError(t, p.Submit(Task{Fn: func(context.Context) error { panic("kaboom") }}))
	require.NoError(t, p.Submit(Task{Fn: func(context.Context) error { return nil }}))

	require.NoError(t, p.Stop(time.Second))

	stats := p.Stats()
	assert.Equal(t, uint64(3), stats.Submitted)
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(1), stats.Completed)
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	p := New(Config{Name: "stopped"})
	require.NoError(t, p.Stop(time.Second))
	require.NoError(t, p.Stop(time.Second), "stop is idempotent")

	assert.ErrorIs(t, p.Submit(Task{Fn: func(context.Context) error { return nil }}), ErrStopped)
	assert.ErrorIs(t, p.SubmitWithContext(context.Background(), Task{Fn: func(context.Context) error { return nil }}), ErrStopped)
}

func TestWorkerPool_StopTimeoutCancelsTasks(t *testing.T) {
	p := New(Config{Name: "slow", MaxWorkers: 1, QueueSize: 1})

	canceled := make(chan struct{})
	require.NoError(t, p.Submit(Task{Fn: func(ctx context.Context) error {
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	}}))

	err := p.Stop(20 * time.Millisecond)
	assert.Error(t, err)

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("task context was not canceled")
	}
}

func TestWorkerPool_SubmitWithContextWaitsForRoom(t *testing.T) {
	p := New(Config{Name: "blocking", MaxWorkers: 1, QueueSize: 1})
	defer p.Stop(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(Task{Fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started
	require.NoError(t, p.Submit(Task{Fn: func(context.Context) error { return nil }}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.SubmitWithContext(ctx, Task{Fn: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}
