package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisSlotLocker(client, 5*time.Second), srv
}

func TestWithSlotLockRunsCritical(t *testing.T) {
	locker, _ := newTestLocker(t)

	ran := false
	err := locker.WithSlotLock(context.Background(), "2024-09-25|14:00", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestWithSlotLockContendedKey(t *testing.T) {
	locker, srv := newTestLocker(t)

	// Simulate another replica holding the same slot lock.
	require.NoError(t, srv.Set("lock:slot:2024-09-25|14:00", "other-token"))

	err := locker.WithSlotLock(context.Background(), "2024-09-25|14:00", func(ctx context.Context) error {
		t.Fatal("critical section must not run while the lock is held elsewhere")
		return nil
	})
	require.ErrorIs(t, err, ErrLockNotAcquired)

	// A different slot key is unaffected.
	err = locker.WithSlotLock(context.Background(), "2024-09-25|14:15", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockReleasesOnReturn(t *testing.T) {
	locker, srv := newTestLocker(t)

	wantErr := errors.New("boom")
	err := locker.WithSlotLock(context.Background(), "2024-09-25|14:00", func(ctx context.Context) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	// The lock key is gone, so a retry acquires immediately.
	require.False(t, srv.Exists("lock:slot:2024-09-25|14:00"))
	err = locker.WithSlotLock(context.Background(), "2024-09-25|14:00", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}
