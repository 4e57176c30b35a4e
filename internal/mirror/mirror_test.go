package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yuemei/clinic-booking/pkg/logging"
)

type recordingMirror struct {
	mu      sync.Mutex
	created map[string]Event
	updated []string
	deleted []string
	err     error
	done    chan struct{}
}

func newRecordingMirror(err error) *recordingMirror {
	return &recordingMirror{err: err, created: map[string]Event{}, done: make(chan struct{}, 8)}
}

func (m *recordingMirror) CreateEvent(ctx context.Context, id string, ev Event) (string, error) {
	m.mu.Lock()
	m.created[id] = ev
	m.mu.Unlock()
	m.done <- struct{}{}
	if m.err != nil {
		return "", m.err
	}
	return "ext-" + id, nil
}

func (m *recordingMirror) UpdateEvent(ctx context.Context, id string, ev Event) error {
	m.mu.Lock()
	m.updated = append(m.updated, id)
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.err
}

func (m *recordingMirror) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, id)
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.err
}

func waitDone(t *testing.T, m *recordingMirror) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror call never ran")
	}
}

func TestDispatcherCreateAsync(t *testing.T) {
	m := newRecordingMirror(nil)
	d := NewDispatcher(m, logging.Default(), time.Second)

	d.CreateAsync("appt-1", Event{Summary: "王小姐 - 諮詢"})
	waitDone(t, m)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.created, 1)
	require.Equal(t, "王小姐 - 諮詢", m.created["appt-1"].Summary)
}

func TestDispatcherAddressesSameEventAcrossLifecycle(t *testing.T) {
	m := newRecordingMirror(nil)
	d := NewDispatcher(m, logging.Default(), time.Second)

	d.CreateAsync("appt-1", Event{Summary: "王小姐 - 諮詢"})
	waitDone(t, m)
	d.UpdateAsync("appt-1", Event{Summary: "王小姐 - 皮秒雷射"})
	waitDone(t, m)
	d.DeleteAsync("appt-1")
	waitDone(t, m)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Contains(t, m.created, "appt-1")
	require.Equal(t, []string{"appt-1"}, m.updated, "update must target the id create established")
	require.Equal(t, []string{"appt-1"}, m.deleted, "delete must target the id create established")
}

func TestDispatcherSwallowsMirrorFailure(t *testing.T) {
	m := newRecordingMirror(errors.New("calendar down"))
	d := NewDispatcher(m, logging.Default(), time.Second)

	// None of these block or panic the caller; failures are logged only.
	d.CreateAsync("appt-1", Event{})
	waitDone(t, m)
	d.UpdateAsync("appt-1", Event{})
	waitDone(t, m)
	d.DeleteAsync("appt-1")
	waitDone(t, m)
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	d.CreateAsync("appt-1", Event{})
	d.UpdateAsync("appt-1", Event{})
	d.DeleteAsync("appt-1")

	d = NewDispatcher(nil, nil, 0)
	d.CreateAsync("appt-1", Event{})
}

func TestEventIDDerivation(t *testing.T) {
	// Calendar event ids allow base32hex characters only, so the UUID's
	// hyphens must go and hex must be lowercase. The derivation is pure, so
	// insert, patch, and delete all compute the same id.
	id := eventID("9B2E6A30-31FD-4C21-A7E4-0F5D82C9B111")
	require.Equal(t, "9b2e6a3031fd4c21a7e40f5d82c9b111", id)
	require.Equal(t, id, eventID("9b2e6a30-31fd-4c21-a7e4-0f5d82c9b111"))
}
