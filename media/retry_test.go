package media

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicySteps(t *testing.T) {
	p := NewRetryPolicy(3, 2*time.Second, nil)

	var seen []int
	for {
		n, ok := p.Next()
		if !ok {
			break
		}
		seen = append(seen, n)
	}
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.True(t, p.IsExhausted())

	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
}

func TestRetryPolicyOnFailureDropsCookie(t *testing.T) {
	dir := t.TempDir()
	writeCookies(t, dir, "a.txt", "b.txt")
	pool := NewCookiePool(dir)
	require.NoError(t, pool.Load())

	p := NewRetryPolicy(3, 0, pool)
	p.OnFailure(filepath.Join(dir, "a.txt"))
	p.OnFailure("")
	assert.Equal(t, 1, pool.Len())
}

func TestRetryPolicyWaitCanceled(t *testing.T) {
	p := NewRetryPolicy(3, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx, 1), context.Canceled)
}
