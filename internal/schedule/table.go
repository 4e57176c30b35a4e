package schedule

import (
	"fmt"
	"time"
)

// Entry holds the opening hours for a single weekday.
// Minutes are counted since midnight.
type Entry struct {
	Weekday      time.Weekday
	Open         bool
	OpenMinutes  int
	CloseMinutes int
}

// Table is the clinic's static weekly availability. It is built once at
// startup and never mutated afterwards.
type Table struct {
	entries [7]Entry
}

// NewTable validates the given entries and builds a table. Weekdays without
// an entry stay closed.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{}
	for i := range t.entries {
		t.entries[i] = Entry{Weekday: time.Weekday(i)}
	}

	for _, e := range entries {
		if e.Weekday < time.Sunday || e.Weekday > time.Saturday {
			return nil, fmt.Errorf("invalid weekday %d", e.Weekday)
		}
		if e.Open && e.OpenMinutes >= e.CloseMinutes {
			return nil, fmt.Errorf("%s: open time %s must precede close time %s",
				e.Weekday, FormatClock(e.OpenMinutes), FormatClock(e.CloseMinutes))
		}
		t.entries[e.Weekday] = e
	}

	return t, nil
}

// DefaultTable returns the clinic's standard week:
// Tue-Fri 12:00-20:00, Sat 11:00-20:00, Sun and Mon closed.
func DefaultTable() *Table {
	t, err := NewTable([]Entry{
		{Weekday: time.Tuesday, Open: true, OpenMinutes: 12 * 60, CloseMinutes: 20 * 60},
		{Weekday: time.Wednesday, Open: true, OpenMinutes: 12 * 60, CloseMinutes: 20 * 60},
		{Weekday: time.Thursday, Open: true, OpenMinutes: 12 * 60, CloseMinutes: 20 * 60},
		{Weekday: time.Friday, Open: true, OpenMinutes: 12 * 60, CloseMinutes: 20 * 60},
		{Weekday: time.Saturday, Open: true, OpenMinutes: 11 * 60, CloseMinutes: 20 * 60},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Entry returns the weekday's hours. The second return value is false when
// the clinic is closed that day.
func (t *Table) Entry(w time.Weekday) (Entry, bool) {
	e := t.entries[w]
	return e, e.Open
}

// IsOpenAt reports whether the given minute of the day falls within the
// weekday's opening hours, using a half-open [open, close) interval.
func (t *Table) IsOpenAt(w time.Weekday, minutes int) bool {
	e := t.entries[w]
	return e.Open && minutes >= e.OpenMinutes && minutes < e.CloseMinutes
}
