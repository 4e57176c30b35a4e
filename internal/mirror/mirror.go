// Package mirror pushes a best-effort copy of booking state to an external
// calendar. The ledger stays authoritative: mirror failures are logged and
// never surfaced to the booking caller.
package mirror

import (
	"context"
	"time"

	"github.com/yuemei/clinic-booking/pkg/logging"
)

// Event is the calendar-facing projection of an appointment.
type Event struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	AttendeeName  string
}

// Mirror is an external calendar that accepts copies of booking state. The
// id is the appointment id; implementations must address the same external
// event for create, update, and delete of one id.
type Mirror interface {
	CreateEvent(ctx context.Context, id string, ev Event) (string, error)
	UpdateEvent(ctx context.Context, id string, ev Event) error
	DeleteEvent(ctx context.Context, id string) error
}

// Dispatcher runs mirror calls in their own goroutines with a bounded
// timeout, detached from the caller's context.
type Dispatcher struct {
	mirror  Mirror
	logger  *logging.Logger
	timeout time.Duration
}

func NewDispatcher(m Mirror, logger *logging.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{mirror: m, logger: logger, timeout: timeout}
}

// CreateAsync mirrors a new appointment. The external event id is never fed
// back into the ledger; the mirror derives it from the appointment id so
// later updates and deletes reach the same event.
func (d *Dispatcher) CreateAsync(appointmentID string, ev Event) {
	if d == nil || d.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		externalID, err := d.mirror.CreateEvent(ctx, appointmentID, ev)
		if err != nil {
			d.logger.Warn("calendar mirror create failed", "appointment_id", appointmentID, "error", err)
			return
		}
		d.logger.Info("calendar mirror created", "appointment_id", appointmentID, "event_id", externalID)
	}()
}

func (d *Dispatcher) UpdateAsync(appointmentID string, ev Event) {
	if d == nil || d.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.mirror.UpdateEvent(ctx, appointmentID, ev); err != nil {
			d.logger.Warn("calendar mirror update failed", "appointment_id", appointmentID, "error", err)
		}
	}()
}

func (d *Dispatcher) DeleteAsync(appointmentID string) {
	if d == nil || d.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.mirror.DeleteEvent(ctx, appointmentID); err != nil {
			d.logger.Warn("calendar mirror delete failed", "appointment_id", appointmentID, "error", err)
		}
	}()
}
