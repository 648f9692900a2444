package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTransient(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		transient bool
	}{
		{ErrKindRateLimited, true},
		{ErrKindTimeout, true},
		{ErrKindAuth, false},
		{ErrKindInvalidResponse, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &Error{Kind: tt.kind, Err: fmt.Errorf("boom")}
			assert.Equal(t, tt.transient, err.Transient())
			assert.Equal(t, tt.transient, Retryable(err))
		})
	}
}

func TestRetryableNonProviderError(t *testing.T) {
	assert.False(t, Retryable(errors.New("plain error")))
	assert.False(t, Retryable(nil))

	wrapped := fmt.Errorf("analyze article: %w", &Error{Kind: ErrKindRateLimited, Err: errors.New("429")})
	assert.True(t, Retryable(wrapped))
}

func TestRetryPolicyDoRetriesTransientOnce(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return &Error{Kind: ErrKindTimeout, Err: errors.New("deadline")}
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryPolicyDoStopsOnPermanent(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return &Error{Kind: ErrKindAuth, Err: errors.New("401")}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicyDoSucceedsAfterTransient(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.BaseDelay = time.Millisecond

	attempts := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return &Error{Kind: ErrKindRateLimited, Err: errors.New("429")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryPolicyDoHonorsCancellation(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, func(ctx context.Context) error {
		return &Error{Kind: ErrKindTimeout, Err: errors.New("deadline")}
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelaySchedules(t *testing.T) {
	base := time.Second

	exp := &RetryPolicy{BaseDelay: base, BackoffStrategy: ExponentialBackoff}
	assert.Equal(t, time.Second, exp.backoffDelay(0))
	assert.Equal(t, 2*time.Second, exp.backoffDelay(1))
	assert.Equal(t, 4*time.Second, exp.backoffDelay(2))

	lin := &RetryPolicy{BaseDelay: base, BackoffStrategy: LinearBackoff}
	assert.Equal(t, time.Second, lin.backoffDelay(0))
	assert.Equal(t, 2*time.Second, lin.backoffDelay(1))
	assert.Equal(t, 3*time.Second, lin.backoffDelay(2))

	fixed := &RetryPolicy{BaseDelay: base, BackoffStrategy: FixedBackoff}
	assert.Equal(t, time.Second, fixed.backoffDelay(0))
	assert.Equal(t, time.Second, fixed.backoffDelay(3))
}

func TestStaticProviderDeterministicEmbeddings(t *testing.T) {
	p := &StaticProvider{Dimension: 4}

	a, err := p.Embed(context.Background(), "same text")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "same text")
	require.NoError(t, err)
	c, err := p.Embed(context.Background(), "other text")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 4)
}

func TestStaticProviderFailFirst(t *testing.T) {
	p := &StaticProvider{FailFirst: 1}

	_, err := p.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, Retryable(err))

	out, err := p.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, 2, p.Calls())
}
