package rag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLocksExclusivePerTarget(t *testing.T) {
	locks := NewBuildLocks()

	release, err := locks.Acquire("vector", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusBuilding, locks.Status("vector"))

	_, err = locks.Acquire("vector", 0)
	assert.ErrorIs(t, err, ErrBuildInProgress)

	// Unrelated targets build concurrently.
	releaseGraph, err := locks.Acquire("graph", 0)
	require.NoError(t, err)
	releaseGraph()

	release()
	assert.Equal(t, StatusIdle, locks.Status("vector"))

	release2, err := locks.Acquire("vector", 0)
	require.NoError(t, err)
	release2()
}

func TestBuildLocksAcquireWaits(t *testing.T) {
	locks := NewBuildLocks()

	release, err := locks.Acquire("vector", 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	// The second acquire waits for the running build to release.
	release2, err := locks.Acquire("vector", time.Second)
	require.NoError(t, err)
	release2()
}

func TestBuildLocksAcquireTimesOut(t *testing.T) {
	locks := NewBuildLocks()

	release, err := locks.Acquire("vector", 0)
	require.NoError(t, err)
	defer release()

	_, err = locks.Acquire("vector", 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrBuildInProgress)
}

func TestBuildLocksReleaseIdempotent(t *testing.T) {
	locks := NewBuildLocks()

	release, err := locks.Acquire("vector", 0)
	require.NoError(t, err)

	release()
	release() // second call is a no-op, not an unlock of someone else's build

	release2, err := locks.Acquire("vector", 0)
	require.NoError(t, err)
	defer release2()

	_, err = locks.Acquire("vector", 0)
	assert.ErrorIs(t, err, ErrBuildInProgress)
}

func TestBuildLocksStatusUnknownTarget(t *testing.T) {
	locks := NewBuildLocks()
	assert.Equal(t, StatusIdle, locks.Status("never-seen"))
}
