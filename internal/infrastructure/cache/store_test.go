package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewStore(rdb), mr
}

func TestSetGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_ExpiredKeyIsAMiss(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 5*time.Second))
	mr.FastForward(6 * time.Second)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSet_OverwritesPriorValue(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "old", time.Minute))
	require.NoError(t, s.Set(ctx, "k", "new", time.Minute))

	v, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestCompareAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "123456", time.Minute))

	// Mismatch leaves the value in place.
	ok, err := s.CompareAndDelete(ctx, "k", "999999")
	require.NoError(t, err)
	assert.False(t, ok)
	_, exists, _ := s.Get(ctx, "k")
	assert.True(t, exists)

	// Match consumes it.
	ok, err = s.CompareAndDelete(ctx, "k", "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	// Absent key fails closed.
	ok, err = s.CompareAndDelete(ctx, "k", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompareAndDelete_ConcurrentExactlyOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "123456", time.Minute))

	const n = 16
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndDelete(ctx, "k", "123456")
			if err != nil {
				t.Error(err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestDeleteExisting_ConcurrentSingleClaim(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	const n = 16
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.DeleteExisting(ctx, "k")
			if err != nil {
				t.Error(err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestDeletePattern(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "otp:login:a@b.com", "1", time.Minute))
	require.NoError(t, s.Set(ctx, "otp:reset:a@b.com", "2", time.Minute))
	require.NoError(t, s.Set(ctx, "otp:login:c@d.com", "3", time.Minute))
	require.NoError(t, s.Set(ctx, "session:s1", "4", time.Minute))

	require.NoError(t, s.DeletePattern(ctx, "otp:*:a@b.com"))

	_, ok, _ := s.Get(ctx, "otp:login:a@b.com")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "otp:reset:a@b.com")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "otp:login:c@d.com")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, "session:s1")
	assert.True(t, ok)
}
