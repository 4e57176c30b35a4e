package booking

import (
	"context"

	"github.com/yuemei/clinic-booking/internal/schedule"
)

// UpdatePatch carries the fields an update may change. Nil fields are left
// untouched. Capacity re-validation against a changed slot is the service's
// responsibility, not the ledger's.
type UpdatePatch struct {
	PatientName     *string
	PatientPhone    *string
	PatientEmail    *string
	Date            *string
	Time            *string
	DurationMinutes *int
	Type            *schedule.AppointmentType
	PeopleCount     *int
	Treatment       *string
	Notes           *string
}

// Ledger is the authoritative collection of appointments. Lookups on unknown
// ids report absence through the bool result instead of an error; errors are
// reserved for storage failures.
type Ledger interface {
	// AvailablePeopleAt returns slot capacity minus the people booked into
	// non-cancelled appointments at (date, time). Full capacity when the slot
	// is empty, never negative.
	AvailablePeopleAt(ctx context.Context, date, tm string) (int, error)

	// Add inserts an appointment. The caller must already have confirmed
	// capacity under the slot lock.
	Add(ctx context.Context, appt *Appointment) error

	// UpdateByID merges the patch and stamps UpdatedAt.
	UpdateByID(ctx context.Context, id string, patch UpdatePatch) (*Appointment, bool, error)

	// SetStatus transitions status only when the current status matches from.
	SetStatus(ctx context.Context, id string, from, to Status) (*Appointment, bool, error)

	FindByID(ctx context.Context, id string) (*Appointment, bool, error)
	FindByDate(ctx context.Context, date string) ([]Appointment, error)

	// Search matches a case-insensitive substring of patient name, phone, or
	// treatment.
	Search(ctx context.Context, term string) ([]Appointment, error)

	// InsertEvent appends to the booking event log.
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Store persists ledger snapshots. LoadAll runs once at session start and
// SaveAll after each mutation.
type Store interface {
	LoadAll(ctx context.Context) ([]Appointment, error)
	SaveAll(ctx context.Context, appts []Appointment) error
}
