package rag

import (
	"sync"
	"time"
)

// BuildStatus is the observable state of a build target.
type BuildStatus string

const (
	StatusIdle     BuildStatus = "idle"
	StatusBuilding BuildStatus = "building"
)

// BuildLocks serializes builds per target. Builds for distinct targets run
// concurrently; a second build for the same target is rejected, not queued,
// once the acquire timeout expires.
type BuildLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewBuildLocks creates an empty registry.
func NewBuildLocks() *BuildLocks {
	return &BuildLocks{locks: make(map[string]chan struct{})}
}

func (l *BuildLocks) lockFor(target string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[target]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[target] = ch
	}
	return ch
}

// Acquire takes the build lock for target, waiting up to timeout for a
// running build to finish. It returns a release func on success and
// ErrBuildInProgress when the lock stays held past the timeout.
func (l *BuildLocks) Acquire(target string, timeout time.Duration) (func(), error) {
	ch := l.lockFor(target)

	select {
	case ch <- struct{}{}:
	default:
		if timeout <= 0 {
			return nil, ErrBuildInProgress
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case ch <- struct{}{}:
		case <-timer.C:
			return nil, ErrBuildInProgress
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() { <-ch })
	}
	return release, nil
}

// Status reports whether a build currently holds the target's lock.
func (l *BuildLocks) Status(target string) BuildStatus {
	l.mu.Lock()
	ch, ok := l.locks[target]
	l.mu.Unlock()

	if ok && len(ch) > 0 {
		return StatusBuilding
	}
	return StatusIdle
}
