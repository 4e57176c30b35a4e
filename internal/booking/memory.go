package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryLedger keeps all appointments in process memory, guarded by a
// mutex. It is created per session with explicit initial state; there is no
// package-level instance. An optional Store persists a snapshot after each
// mutation.
type MemoryLedger struct {
	mu       sync.RWMutex
	capacity int
	appts    map[string]*Appointment
	events   []EventLog
	store    Store
}

// NewMemoryLedger builds a ledger with the given per-slot capacity. When a
// store is provided, the previous session's appointments are loaded from it.
func NewMemoryLedger(ctx context.Context, capacity int, store Store) (*MemoryLedger, error) {
	if capacity <= 0 {
		capacity = 1
	}

	l := &MemoryLedger{
		capacity: capacity,
		appts:    make(map[string]*Appointment),
		store:    store,
	}

	if store != nil {
		loaded, err := store.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load ledger snapshot: %w", err)
		}
		for i := range loaded {
			a := loaded[i]
			l.appts[a.ID] = &a
		}
	}

	return l, nil
}

func (l *MemoryLedger) AvailablePeopleAt(ctx context.Context, date, tm string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	booked := 0
	for _, a := range l.appts {
		if a.Date == date && a.Time == tm && a.Active() {
			booked += a.PeopleCount
		}
	}

	available := l.capacity - booked
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (l *MemoryLedger) Add(ctx context.Context, appt *Appointment) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *appt
	l.appts[cp.ID] = &cp

	return l.persistLocked(ctx)
}

func (l *MemoryLedger) UpdateByID(ctx context.Context, id string, patch UpdatePatch) (*Appointment, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.appts[id]
	if !ok {
		return nil, false, nil
	}

	applyPatch(a, patch)
	a.UpdatedAt = time.Now()

	if err := l.persistLocked(ctx); err != nil {
		return nil, true, err
	}

	cp := *a
	return &cp, true, nil
}

func (l *MemoryLedger) SetStatus(ctx context.Context, id string, from, to Status) (*Appointment, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.appts[id]
	if !ok || a.Status != from {
		return nil, false, nil
	}

	a.Status = to
	a.UpdatedAt = time.Now()

	if err := l.persistLocked(ctx); err != nil {
		return nil, true, err
	}

	cp := *a
	return &cp, true, nil
}

func (l *MemoryLedger) FindByID(ctx context.Context, id string) (*Appointment, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.appts[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

func (l *MemoryLedger) FindByDate(ctx context.Context, date string) ([]Appointment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Appointment
	for _, a := range l.appts {
		if a.Date == date {
			result = append(result, *a)
		}
	}
	sortByTime(result)
	return result, nil
}

func (l *MemoryLedger) Search(ctx context.Context, term string) ([]Appointment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	needle := strings.ToLower(term)

	var result []Appointment
	for _, a := range l.appts {
		if strings.Contains(strings.ToLower(a.PatientName), needle) ||
			strings.Contains(a.PatientPhone, term) ||
			strings.Contains(strings.ToLower(a.Treatment), needle) {
			result = append(result, *a)
		}
	}
	sortByTime(result)
	return result, nil
}

func (l *MemoryLedger) InsertEvent(ctx context.Context, ev EventLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.ID = int64(len(l.events) + 1)
	l.events = append(l.events, ev)
	return nil
}

// Events returns a snapshot of the event log, oldest first.
func (l *MemoryLedger) Events() []EventLog {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]EventLog(nil), l.events...)
}

func (l *MemoryLedger) persistLocked(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	snapshot := make([]Appointment, 0, len(l.appts))
	for _, a := range l.appts {
		snapshot = append(snapshot, *a)
	}
	sortByTime(snapshot)

	if err := l.store.SaveAll(ctx, snapshot); err != nil {
		return fmt.Errorf("save ledger snapshot: %w", err)
	}
	return nil
}

func applyPatch(a *Appointment, patch UpdatePatch) {
	if patch.PatientName != nil {
		a.PatientName = *patch.PatientName
	}
	if patch.PatientPhone != nil {
		a.PatientPhone = *patch.PatientPhone
	}
	if patch.PatientEmail != nil {
		a.PatientEmail = *patch.PatientEmail
	}
	if patch.Date != nil {
		a.Date = *patch.Date
	}
	if patch.Time != nil {
		a.Time = *patch.Time
	}
	if patch.DurationMinutes != nil {
		a.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Type != nil {
		a.Type = *patch.Type
	}
	if patch.PeopleCount != nil {
		a.PeopleCount = *patch.PeopleCount
	}
	if patch.Treatment != nil {
		a.Treatment = *patch.Treatment
	}
	if patch.Notes != nil {
		a.Notes = *patch.Notes
	}
}

func sortByTime(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		if appts[i].Time != appts[j].Time {
			return appts[i].Time < appts[j].Time
		}
		return appts[i].ID < appts[j].ID
	})
}
