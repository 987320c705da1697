package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counting() (*int, Loader[string, int]) {
	calls := 0
	return &calls, func(_ context.Context, key string) (int, error) {
		calls++
		if key == "bad" {
			return 0, errors.New("boom")
		}
		return calls, nil
	}
}

func TestGetCachesUntilExpiry(t *testing.T) {
	calls, load := counting()
	c := New(load, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	v, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, _ = c.Get(context.Background(), "k")
	assert.Equal(t, 1, v, "served from cache")
	assert.Equal(t, 1, *calls)

	now = now.Add(2 * time.Minute)
	v, _ = c.Get(context.Background(), "k")
	assert.Equal(t, 2, v, "expired entry reloaded")
}

func TestRefreshAndInvalidate(t *testing.T) {
	calls, load := counting()
	c := New(load, time.Hour)
	ctx := context.Background()

	_, _ = c.Get(ctx, "k")
	v, _ := c.Refresh(ctx, "k")
	assert.Equal(t, 2, v)

	c.Invalidate("k")
	v, _ = c.Get(ctx, "k")
	assert.Equal(t, 3, v)

	c.InvalidateAll()
	_, _ = c.Get(ctx, "k")
	assert.Equal(t, 4, *calls)
}

func TestErrorsAreNotCached(t *testing.T) {
	calls, load := counting()
	c := New(load, time.Hour)
	_, err := c.Get(context.Background(), "bad")
	require.Error(t, err)
	_, err = c.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Equal(t, 2, *calls)
}
