package booking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesPerKey(t *testing.T) {
	locker := NewLocalLocker()

	var inside int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithSlotLock(context.Background(), SlotKey("2024-09-25", "14:00"), func(ctx context.Context) error {
				if atomic.AddInt32(&inside, 1) != 1 {
					t.Error("two holders inside the critical section")
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}

	wg.Wait()
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker()

	// A held lock on one slot must not block another slot.
	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = locker.WithSlotLock(context.Background(), SlotKey("2024-09-25", "14:00"), func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	done := make(chan error, 1)
	go func() {
		done <- locker.WithSlotLock(context.Background(), SlotKey("2024-09-25", "15:00"), func(ctx context.Context) error {
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("independent slot key blocked behind another slot's lock")
	}
	close(release)
}
