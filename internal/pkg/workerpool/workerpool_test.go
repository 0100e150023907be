package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"survey-service/internal/pkg/workerpool"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := workerpool.NewWorkerPool(ctx, 2, 4, zap.NewNop())

	var ran atomic.Int32
	done := make(chan struct{}, 3)
	for n := 0; n < 3; n++ {
		require.True(t, pool.Submit(func(context.Context) {
			ran.Add(1)
			done <- struct{}{}
		}))
	}
	for n := 0; n < 3; n++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for job")
		}
	}
	assert.Equal(t, int32(3), ran.Load())

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	pool.Shutdown(shutdownCtx)
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := workerpool.NewWorkerPool(ctx, 1, 1, zap.NewNop())

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, pool.Submit(func(context.Context) {
		close(started)
		<-block
	}))
	<-started
	require.True(t, pool.Submit(func(context.Context) {}))
	assert.False(t, pool.Submit(func(context.Context) {}))
	close(block)
}

func TestWithRetryStopsOnSuccess(t *testing.T) {
	var calls int
	job := workerpool.WithRetry(zap.NewNop(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("broker unavailable")
		}
		return nil
	})
	job(context.Background())
	assert.Equal(t, 2, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	var calls int
	job := workerpool.WithRetry(zap.NewNop(), 3, time.Millisecond, func(context.Context) error {
		calls++
		return errors.New("broker unavailable")
	})
	job(context.Background())
	assert.Equal(t, 3, calls)
}

func TestSubmitAfterShutdownIsDropped(t *testing.T) {
	pool := workerpool.NewWorkerPool(context.Background(), 1, 4, zap.NewNop())

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	pool.Shutdown(shutdownCtx)

	assert.NotPanics(t, func() {
		assert.False(t, pool.Submit(func(context.Context) {}))
	})
	// A second shutdown is a no-op.
	pool.Shutdown(shutdownCtx)
}
