package booking

import (
	"context"
	"sync"

	redisclient "github.com/yuemei/clinic-booking/internal/redis"
)

// LocalLocker serializes bookings per slot key within a single process. It
// is the single-writer alternative to the Redis locker for deployments with
// exactly one server instance.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.slots[slotKey]
	if !ok {
		m = &sync.Mutex{}
		l.slots[slotKey] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}

var _ redisclient.Locker = (*LocalLocker)(nil)
