package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseLocalExclusion(t *testing.T) {
	l := NewLease(nil)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "sync:account:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second holder is refused while the lease lives.
	ok, err = l.Acquire(ctx, "sync:account:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other keys are independent.
	ok, err = l.Acquire(ctx, "sync:account:2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "sync:account:1"))
	ok, err = l.Acquire(ctx, "sync:account:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseLocalExpiry(t *testing.T) {
	l := NewLease(nil)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "sync:account:1", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	// An expired lease no longer blocks a new run.
	ok, err = l.Acquire(ctx, "sync:account:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
