package cache

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

func TestRunCache_Get(t *testing.T) {
	c := NewRunCache[string]()
	var loads int32

	load := func(ctx context.Context, key string) (string, error) {
		atomic.AddInt32(&loads, 1)
		return "value-" + key, nil
	}

	v, err := c.Get(context.Background(), "MMAE", load)
	require.NoError(t, err)
	assert.Equal(t, "value-MMAE", v)

	v, err = c.Get(context.Background(), "MMAE", load)
	require.NoError(t, err)
	assert.Equal(t, "value-MMAE", v)

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Loads)
	assert.Equal(t, 1, stats.Size)
}

func TestRunCache_ConcurrentCallersShareLoad(t *testing.T) {
	c := NewRunCache[int]()
	var loads int32
	release := make(chan struct{})

	load := func(ctx context.Context, key string) (int, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "DXD", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestRunCache_ErrorsAreNotCached(t *testing.T) {
	c := NewRunCache[string]()
	boom := errors.New("registry down")
	calls := 0

	load := func(ctx context.Context, key string) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	}

	_, err := c.Get(context.Background(), "SN38", load)
	assert.ErrorIs(t, err, boom)
	_, ok := c.Peek("SN38")
	assert.False(t, ok)

	v, err := c.Get(context.Background(), "SN38", load)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int64(1), c.Stats().Errors)
}

func TestRunCache_Peek(t *testing.T) {
	c := NewRunCache[string]()

	_, ok := c.Peek("MMAE")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().Misses)

	_, err := c.Get(context.Background(), "MMAE", func(ctx context.Context, key string) (string, error) {
		return "CHEMBL3545086", nil
	})
	require.NoError(t, err)

	v, ok := c.Peek("MMAE")
	assert.True(t, ok)
	assert.Equal(t, "CHEMBL3545086", v)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(0), c.Stats().Hits)
}
