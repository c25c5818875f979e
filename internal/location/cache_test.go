package location

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	calls int
	addr  *Address
	err   error
}

func (s *stubResolver) Resolve(ctx context.Context, text string) (*Address, error) {
	s.calls++
	return s.addr, s.err
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(context.Background(), filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleAddress() *Address {
	return &Address{
		Name:        "La Maison",
		Address:     "1 rue de la Paix",
		City:        "Paris",
		Department:  "75",
		ZipCode:     "75002",
		CountryCode: "FR",
		Latitude:    48.86,
		Longitude:   2.33,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	_, found, err := c.Get(ctx, "1 rue de la Paix")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "1 rue de la Paix", sampleAddress()))
	got, found, err := c.Get(ctx, "  1 RUE de la   Paix ")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sampleAddress(), got)

	require.NoError(t, c.Set(ctx, "nowhere", nil))
	got, found, err = c.Get(ctx, "nowhere")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Nil(t, got)
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "Paris", sampleAddress()))
	now = now.Add(2 * time.Hour)

	_, found, err := c.Get(ctx, "Paris")
	require.NoError(t, err)
	assert.False(t, found)

	removed, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestCachedResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("success is cached", func(t *testing.T) {
		inner := &stubResolver{addr: sampleAddress()}
		r := NewCachedResolver(inner, openTestCache(t))
		for i := 0; i < 2; i++ {
			addr, err := r.Resolve(ctx, "1 rue de la Paix")
			require.NoError(t, err)
			assert.Equal(t, "Paris", addr.City)
		}
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("unresolvable is cached", func(t *testing.T) {
		inner := &stubResolver{err: &UnresolvableError{Text: "x", Reason: "no complete match"}}
		r := NewCachedResolver(inner, openTestCache(t))
		for i := 0; i < 2; i++ {
			_, err := r.Resolve(ctx, "x")
			var ue *UnresolvableError
			assert.True(t, errors.As(err, &ue))
		}
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("transport errors are not cached", func(t *testing.T) {
		inner := &stubResolver{err: errors.New("connection reset")}
		r := NewCachedResolver(inner, openTestCache(t))
		for i := 0; i < 2; i++ {
			_, err := r.Resolve(ctx, "y")
			assert.Error(t, err)
		}
		assert.Equal(t, 2, inner.calls)
	})
}
