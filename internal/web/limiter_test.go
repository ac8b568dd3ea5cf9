package web

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLimiter_AcquireRelease(t *testing.T) {
	l := NewRunLimiter(1, time.Second)

	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 1, l.ActiveCount())

	l.Release()
	assert.Equal(t, 0, l.ActiveCount())
}

func TestRunLimiter_RejectsWhenFull(t *testing.T) {
	l := NewRunLimiter(1, 50*time.Millisecond)

	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTooManyRuns)
}

func TestRunLimiter_WaitsForSlot(t *testing.T) {
	l := NewRunLimiter(1, time.Second)

	require.NoError(t, l.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	l.Release()

	select {
	case err := <-done:
		require.NoError(t, err)
		l.Release()
	case <-time.After(time.Second):
		t.Fatal("waiting acquire never completed")
	}
}

func TestRunLimiter_ContextCancellation(t *testing.T) {
	l := NewRunLimiter(1, time.Second)

	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunLimiter_ZeroConfigDefaults(t *testing.T) {
	l := NewRunLimiter(0, 0)

	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()
	assert.Equal(t, 1, l.ActiveCount())
}
