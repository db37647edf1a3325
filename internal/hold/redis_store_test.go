package hold

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test"), mr
}

func TestRedisStorePlace(t *testing.T) {
	ctx := context.Background()

	t.Run("hold round trips", func(t *testing.T) {
		s, mr := newRedisStore(t)
		require.NoError(t, s.Place(ctx, newHold("h1", "session-a", t0, t0.Add(10*time.Minute)), t0))

		got, err := s.Get(ctx, "h1", t0.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "svc-1", got.ServiceID)
		assert.Equal(t, "session-a", got.SessionID)
		assert.True(t, t0.Equal(got.Start))
		assert.True(t, t0.Add(time.Hour).Equal(got.End))
		assert.True(t, t0.Add(10*time.Minute).Equal(got.ExpiresAt))

		assert.Equal(t, 10*time.Minute, mr.TTL("test:hold:h1"))
	})

	t.Run("other session overlap is rejected", func(t *testing.T) {
		s, _ := newRedisStore(t)
		require.NoError(t, s.Place(ctx, newHold("h1", "session-a", t0, t0.Add(10*time.Minute)), t0))

		err := s.Place(ctx, newHold("h2", "session-b", t0.Add(30*time.Minute), t0.Add(10*time.Minute)), t0)
		assert.ErrorIs(t, err, ErrSlotHeld)

		_, err = s.Get(ctx, "h2", t0)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("adjacent slot is fine", func(t *testing.T) {
		s, _ := newRedisStore(t)
		require.NoError(t, s.Place(ctx, newHold("h1", "session-a", t0, t0.Add(10*time.Minute)), t0))
		require.NoError(t, s.Place(ctx, newHold("h2", "session-b", t0.Add(time.Hour), t0.Add(10*time.Minute)), t0))
	})

	t.Run("same session replaces its previous hold", func(t *testing.T) {
		s, _ := newRedisStore(t)
		require.NoError(t, s.Place(ctx, newHold("h1", "session-a", t0, t0.Add(10*time.Minute)), t0))
		require.NoError(t, s.Place(ctx, newHold("h2", "session-a", t0.Add(2*time.Hour), t0.Add(10*time.Minute)), t0))

		active, err := s.ActiveForService(ctx, "svc-1", t0.Add(-time.Hour), t0.Add(5*time.Hour), t0)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "h2", active[0].ID)

		_, err = s.Get(ctx, "h1", t0)
		assert.ErrorIs(t, err, ErrNotFound)

		// The replaced interval is free for others.
		require.NoError(t, s.Place(ctx, newHold("h3", "session-b", t0, t0.Add(10*time.Minute)), t0))
	})

	t.Run("expired hold does not block", func(t *testing.T) {
		s, _ := newRedisStore(t)
		require.NoError(t, s.Place(ctx, newHold("h1", "session-a", t0, t0.Add(10*time.Minute)), t0))

		later := t0.Add(11 * time.Minute)
		require.NoError(t, s.Place(ctx, newHold("h2", "session-b", t0, later.Add(10*time.Minute)), later))

		_, err := s.Get(ctx, "h1", later)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRedisStoreRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("only the owning session may release", func(t *testing.T) {
		s, _ := newRedisStore(t)
		require.NoError(t, s.Place(ctx, newHold("h1", "session-a", t0, t0.Add(10*time.Minute)), t0))

		assert.ErrorIs(t, s.Release(ctx, "h1", "session-b"), ErrNotOwner)
		_, err := s.Get(ctx, "h1", t0)
		require.NoError(t, err)

		require.NoError(t, s.Release(ctx, "h1", "session-a"))
		_, err = s.Get(ctx, "h1", t0)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Release(ctx, "h1", "session-a"), ErrNotFound)

		require.NoError(t, s.Place(ctx, newHold("h2", "session-b", t0, t0.Add(10*time.Minute)), t0))
	})

	t.Run("release by session", func(t *testing.T) {
		s, _ := newRedisStore(t)
		require.NoError(t, s.Place(ctx, newHold("h1", "session-a", t0, t0.Add(10*time.Minute)), t0))
		require.NoError(t, s.Place(ctx, newHold("h2", "session-b", t0.Add(2*time.Hour), t0.Add(10*time.Minute)), t0))

		require.NoError(t, s.ReleaseSession(ctx, "svc-1", "session-a"))

		active, err := s.ActiveForService(ctx, "svc-1", t0.Add(-time.Hour), t0.Add(5*time.Hour), t0)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "session-b", active[0].SessionID)
	})

	t.Run("unknown hold", func(t *testing.T) {
		s, _ := newRedisStore(t)
		assert.ErrorIs(t, s.Release(ctx, "missing", "session-a"), ErrNotFound)
	})
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	require.NoError(t, s.Place(ctx, newHold("h1", "session-a", t0, t0.Add(10*time.Minute)), t0))
	require.NoError(t, s.Place(ctx, newHold("h2", "session-b", t0.Add(2*time.Hour), t0.Add(30*time.Minute)), t0))

	later := t0.Add(20 * time.Minute)
	active, err := s.ActiveForService(ctx, "svc-1", t0.Add(-time.Hour), t0.Add(5*time.Hour), later)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "h2", active[0].ID)

	_, err = s.Get(ctx, "h1", later)
	assert.ErrorIs(t, err, ErrNotFound)

	// Windows that miss the live hold see nothing.
	active, err = s.ActiveForService(ctx, "svc-1", t0, t0.Add(time.Hour), later)
	require.NoError(t, err)
	assert.Empty(t, active)

	n, err := s.SweepExpired(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.SweepExpired(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, n)
}
