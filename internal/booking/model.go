package booking

import (
	"time"

	"github.com/yuemei/clinic-booking/internal/schedule"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment is the booked entity. Date is "YYYY-MM-DD" and Time "HH:MM";
// the pair identifies the slot the appointment occupies. IDs are strings so
// an external calendar's event id can stand in for a locally generated one.
type Appointment struct {
	ID              string                   `json:"id"`
	PatientName     string                   `json:"patient_name"`
	PatientPhone    string                   `json:"patient_phone"`
	PatientEmail    string                   `json:"patient_email,omitempty"`
	Date            string                   `json:"date"`
	Time            string                   `json:"time"`
	DurationMinutes int                      `json:"duration_minutes"`
	Type            schedule.AppointmentType `json:"appointment_type"`
	PeopleCount     int                      `json:"people_count"`
	Treatment       string                   `json:"treatment,omitempty"`
	Notes           string                   `json:"notes,omitempty"`
	Status          Status                   `json:"status"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// Active reports whether the appointment still counts against slot capacity.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// SlotKey identifies the appointment's slot for capacity accounting and
// locking.
func (a *Appointment) SlotKey() string {
	return SlotKey(a.Date, a.Time)
}

// SlotKey builds the "date|time" key shared by the ledger and the locker.
func SlotKey(date, tm string) string {
	return date + "|" + tm
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID string
	Payload       []byte
	CreatedAt     time.Time
}
