package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yuemei/clinic-booking/internal/mirror"
	"github.com/yuemei/clinic-booking/internal/observability/metrics"
	redisclient "github.com/yuemei/clinic-booking/internal/redis"
	"github.com/yuemei/clinic-booking/internal/schedule"
	"github.com/yuemei/clinic-booking/pkg/logging"
)

const (
	EventBookingCreated   = "BOOKING_CREATED"
	EventBookingUpdated   = "BOOKING_UPDATED"
	EventBookingCancelled = "BOOKING_CANCELLED"
	EventBookingCompleted = "BOOKING_COMPLETED"
)

// Notifier receives best-effort patient notifications. Implementations must
// not block the booking flow; failures stay on their side of the fence.
type Notifier interface {
	AppointmentBooked(appt Appointment)
	AppointmentCancelled(appt Appointment)
}

// CreateAppointmentInput is the tagged input for CreateAppointment. All
// validation happens at this boundary; the ledger trusts what it is given.
type CreateAppointmentInput struct {
	PatientName     string
	PatientPhone    string
	PatientEmail    string
	Date            string
	Time            string
	DurationMinutes int
	Type            string
	PeopleCount     int
	Treatment       string
	Notes           string
}

// Options carries the service's optional collaborators and defaults.
type Options struct {
	DefaultDurationMinutes int
	DefaultTreatment       string
	Timezone               *time.Location
	Mirror                 *mirror.Dispatcher
	Notifier               Notifier
	Metrics                *metrics.BookingMetrics
}

// Service is the single entry point for state-changing booking operations.
// The check-then-act sequence around slot capacity runs inside a per-slot
// lock so concurrent callers cannot over-book.
type Service struct {
	ledger Ledger
	locker redisclient.Locker
	table  *schedule.Table
	gen    *schedule.Generator
	opts   Options
	logger *logging.Logger
}

func NewService(ledger Ledger, locker redisclient.Locker, table *schedule.Table, gen *schedule.Generator, opts Options, logger *logging.Logger) *Service {
	if opts.DefaultDurationMinutes <= 0 {
		opts.DefaultDurationMinutes = 60
	}
	if opts.DefaultTreatment == "" {
		opts.DefaultTreatment = "諮詢"
	}
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		ledger: ledger,
		locker: locker,
		table:  table,
		gen:    gen,
		opts:   opts,
		logger: logger,
	}
}

// CreateAppointment validates the input, checks slot capacity under the slot
// lock, and inserts the appointment as scheduled.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	var missing []string
	if in.PatientName == "" {
		missing = append(missing, "patient_name")
	}
	if in.PatientPhone == "" {
		missing = append(missing, "patient_phone")
	}
	if in.Date == "" {
		missing = append(missing, "date")
	}
	if in.Time == "" {
		missing = append(missing, "time")
	}
	if in.Type == "" {
		missing = append(missing, "appointment_type")
	}
	if in.PeopleCount == 0 {
		missing = append(missing, "people_count")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing, Reason: "missing required fields"}
	}

	apptType := schedule.AppointmentType(in.Type)
	typeInfo, ok := schedule.LookupType(apptType)
	if !ok {
		return nil, &ValidationError{Fields: []string{"appointment_type"}, Reason: fmt.Sprintf("unknown appointment type %q", in.Type)}
	}

	if in.PeopleCount < 1 || in.PeopleCount > typeInfo.MaxPeople {
		return nil, &ValidationError{
			Fields: []string{"people_count"},
			Reason: fmt.Sprintf("people count %d not allowed for type %q (max %d)", in.PeopleCount, in.Type, typeInfo.MaxPeople),
		}
	}

	day, err := schedule.ParseDate(in.Date)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"date"}, Reason: err.Error()}
	}
	minutes, err := schedule.ParseClock(in.Time)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"time"}, Reason: err.Error()}
	}

	if !s.table.IsOpenAt(day.Weekday(), minutes) {
		s.opts.Metrics.ObserveConflict(UnavailableClosed)
		return nil, &SlotUnavailableError{Date: in.Date, Time: in.Time, Reason: UnavailableClosed}
	}

	duration := in.DurationMinutes
	if duration <= 0 {
		duration = s.opts.DefaultDurationMinutes
	}
	treatment := in.Treatment
	if treatment == "" {
		treatment = s.opts.DefaultTreatment
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, SlotKey(in.Date, in.Time), func(lockCtx context.Context) error {
		available, err := s.ledger.AvailablePeopleAt(lockCtx, in.Date, in.Time)
		if err != nil {
			return fmt.Errorf("check slot capacity: %w", err)
		}
		if in.PeopleCount > available {
			return &SlotUnavailableError{Date: in.Date, Time: in.Time, Reason: UnavailableFull}
		}

		now := time.Now()
		appt := &Appointment{
			ID:              uuid.NewString(),
			PatientName:     in.PatientName,
			PatientPhone:    in.PatientPhone,
			PatientEmail:    in.PatientEmail,
			Date:            in.Date,
			Time:            in.Time,
			DurationMinutes: duration,
			Type:            apptType,
			PeopleCount:     in.PeopleCount,
			Treatment:       treatment,
			Notes:           in.Notes,
			Status:          StatusScheduled,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if err := s.ledger.Add(lockCtx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventBookingCreated, map[string]any{
			"date":         appt.Date,
			"time":         appt.Time,
			"people_count": appt.PeopleCount,
			"type":         string(appt.Type),
		})
		return nil
	})

	if err != nil {
		var unavailable *SlotUnavailableError
		if errors.As(err, &unavailable) {
			s.opts.Metrics.ObserveConflict(unavailable.Reason)
			return nil, err
		}
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.opts.Metrics.ObserveConflict("busy")
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	s.opts.Metrics.ObserveCreated(string(created.Type))
	s.logger.Info("appointment created",
		"appointment_id", created.ID, "date", created.Date, "time", created.Time,
		"people_count", created.PeopleCount)

	s.opts.Mirror.CreateAsync(created.ID, s.mirrorEvent(created))
	if s.opts.Notifier != nil {
		s.opts.Notifier.AppointmentBooked(*created)
	}

	return created, nil
}

// UpdateAppointment merges the patch. When the patch touches the slot (date,
// time, people count, or type) the capacity rules are re-checked against the
// target slot, excluding the appointment's own prior contribution.
func (s *Service) UpdateAppointment(ctx context.Context, id string, patch UpdatePatch) (*Appointment, error) {
	current, ok, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	merged := *current
	applyPatch(&merged, patch)

	var emptied []string
	if merged.PatientName == "" {
		emptied = append(emptied, "patient_name")
	}
	if merged.PatientPhone == "" {
		emptied = append(emptied, "patient_phone")
	}
	if len(emptied) > 0 {
		return nil, &ValidationError{Fields: emptied, Reason: "required fields cannot be empty"}
	}

	slotChanged := merged.Date != current.Date ||
		merged.Time != current.Time ||
		merged.PeopleCount != current.PeopleCount ||
		merged.Type != current.Type

	var updated *Appointment

	if slotChanged {
		typeInfo, ok := schedule.LookupType(merged.Type)
		if !ok {
			return nil, &ValidationError{Fields: []string{"appointment_type"}, Reason: fmt.Sprintf("unknown appointment type %q", merged.Type)}
		}
		if merged.PeopleCount < 1 || merged.PeopleCount > typeInfo.MaxPeople {
			return nil, &ValidationError{
				Fields: []string{"people_count"},
				Reason: fmt.Sprintf("people count %d not allowed for type %q (max %d)", merged.PeopleCount, merged.Type, typeInfo.MaxPeople),
			}
		}

		day, err := schedule.ParseDate(merged.Date)
		if err != nil {
			return nil, &ValidationError{Fields: []string{"date"}, Reason: err.Error()}
		}
		minutes, err := schedule.ParseClock(merged.Time)
		if err != nil {
			return nil, &ValidationError{Fields: []string{"time"}, Reason: err.Error()}
		}
		if !s.table.IsOpenAt(day.Weekday(), minutes) {
			s.opts.Metrics.ObserveConflict(UnavailableClosed)
			return nil, &SlotUnavailableError{Date: merged.Date, Time: merged.Time, Reason: UnavailableClosed}
		}

		err = s.locker.WithSlotLock(ctx, SlotKey(merged.Date, merged.Time), func(lockCtx context.Context) error {
			available, err := s.ledger.AvailablePeopleAt(lockCtx, merged.Date, merged.Time)
			if err != nil {
				return fmt.Errorf("check slot capacity: %w", err)
			}
			// The appointment's own people still count at its current slot;
			// give them back when the target slot is the same one.
			if current.Active() && current.Date == merged.Date && current.Time == merged.Time {
				available += current.PeopleCount
			}
			if merged.PeopleCount > available {
				return &SlotUnavailableError{Date: merged.Date, Time: merged.Time, Reason: UnavailableFull}
			}

			appt, found, err := s.ledger.UpdateByID(lockCtx, id, patch)
			if err != nil {
				return fmt.Errorf("update appointment: %w", err)
			}
			if !found {
				return &NotFoundError{ID: id}
			}
			updated = appt
			return nil
		})
		if err != nil {
			var unavailable *SlotUnavailableError
			if errors.As(err, &unavailable) {
				s.opts.Metrics.ObserveConflict(unavailable.Reason)
				return nil, err
			}
			if errors.Is(err, redisclient.ErrLockNotAcquired) {
				s.opts.Metrics.ObserveConflict("busy")
				return nil, ErrSlotBusy
			}
			return nil, err
		}
	} else {
		appt, found, err := s.ledger.UpdateByID(ctx, id, patch)
		if err != nil {
			return nil, fmt.Errorf("update appointment: %w", err)
		}
		if !found {
			return nil, &NotFoundError{ID: id}
		}
		updated = appt
	}

	s.logEvent(ctx, updated.ID, EventBookingUpdated, map[string]any{
		"date": updated.Date,
		"time": updated.Time,
	})
	s.logger.Info("appointment updated", "appointment_id", updated.ID)

	s.opts.Mirror.UpdateAsync(updated.ID, s.mirrorEvent(updated))

	return updated, nil
}

// CancelAppointment marks a scheduled appointment cancelled, freeing its
// slot capacity while preserving history. Completed and cancelled
// appointments are terminal.
func (s *Service) CancelAppointment(ctx context.Context, id string) (*Appointment, error) {
	current, ok, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	if current.Status != StatusScheduled {
		return nil, ErrInvalidStatusTransition
	}

	updated, ok, err := s.ledger.SetStatus(ctx, id, StatusScheduled, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	if !ok {
		return nil, ErrInvalidStatusTransition
	}

	s.opts.Metrics.ObserveStatus(string(StatusCancelled))
	s.logEvent(ctx, updated.ID, EventBookingCancelled, map[string]any{
		"date": updated.Date,
		"time": updated.Time,
	})
	s.logger.Info("appointment cancelled", "appointment_id", updated.ID)

	s.opts.Mirror.DeleteAsync(updated.ID)
	if s.opts.Notifier != nil {
		s.opts.Notifier.AppointmentCancelled(*updated)
	}

	return updated, nil
}

// CompleteAppointment marks a scheduled appointment completed.
func (s *Service) CompleteAppointment(ctx context.Context, id string) (*Appointment, error) {
	current, ok, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	if current.Status != StatusScheduled {
		return nil, ErrInvalidStatusTransition
	}

	updated, ok, err := s.ledger.SetStatus(ctx, id, StatusScheduled, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	if !ok {
		return nil, ErrInvalidStatusTransition
	}

	s.opts.Metrics.ObserveStatus(string(StatusCompleted))
	s.logEvent(ctx, updated.ID, EventBookingCompleted, nil)
	s.logger.Info("appointment completed", "appointment_id", updated.ID)

	return updated, nil
}

// GetAppointment loads one appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	appt, ok, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return appt, nil
}

// ListByDate returns the day's appointments ordered by time.
func (s *Service) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, &ValidationError{Fields: []string{"date"}, Reason: err.Error()}
	}
	return s.ledger.FindByDate(ctx, date)
}

// Search never fails on no matches; it returns an empty slice.
func (s *Service) Search(ctx context.Context, term string) ([]Appointment, error) {
	return s.ledger.Search(ctx, term)
}

// SlotAvailability is a slot annotated with its current booking load.
type SlotAvailability struct {
	Time      string `json:"time"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Available int    `json:"available"`
}

// DaySlots returns every slot of the date with booked and remaining counts.
func (s *Service) DaySlots(ctx context.Context, date string) ([]SlotAvailability, error) {
	slots, err := s.gen.Generate(date)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"date"}, Reason: err.Error()}
	}

	appts, err := s.ledger.FindByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	bookedAt := make(map[string]int)
	for _, a := range appts {
		if a.Active() {
			bookedAt[a.Time] += a.PeopleCount
		}
	}

	result := make([]SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		booked := bookedAt[slot.Time]
		available := slot.Capacity - booked
		if available < 0 {
			available = 0
		}
		result = append(result, SlotAvailability{
			Time:      slot.Time,
			Capacity:  slot.Capacity,
			Booked:    booked,
			Available: available,
		})
	}
	return result, nil
}

// DaySummary aggregates one day's bookings for the dashboard.
type DaySummary struct {
	Date           string `json:"date"`
	Total          int    `json:"total"`
	Scheduled      int    `json:"scheduled"`
	Completed      int    `json:"completed"`
	Cancelled      int    `json:"cancelled"`
	AvailableSlots int    `json:"available_slots"`
}

// Summary computes the day's appointment counts and how many slots still
// have capacity left.
func (s *Service) Summary(ctx context.Context, date string) (*DaySummary, error) {
	appts, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	summary := &DaySummary{Date: date, Total: len(appts)}
	for _, a := range appts {
		switch a.Status {
		case StatusScheduled:
			summary.Scheduled++
		case StatusCompleted:
			summary.Completed++
		case StatusCancelled:
			summary.Cancelled++
		}
	}

	slots, err := s.DaySlots(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		if slot.Available > 0 {
			summary.AvailableSlots++
		}
	}

	return summary, nil
}

func (s *Service) mirrorEvent(a *Appointment) mirror.Event {
	start, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, s.opts.Timezone)
	if err != nil {
		// Date and time were validated before the appointment existed.
		start = time.Now().In(s.opts.Timezone)
	}
	end := start.Add(time.Duration(a.DurationMinutes) * time.Minute)

	typeName := string(a.Type)
	if info, ok := schedule.LookupType(a.Type); ok {
		typeName = info.Name
	}

	description := fmt.Sprintf("預約類型：%s\n人數：%d人\n聯絡電話：%s", typeName, a.PeopleCount, a.PatientPhone)
	if a.Notes != "" {
		description += "\n備註：" + a.Notes
	}

	return mirror.Event{
		Summary:       fmt.Sprintf("%s - %s", a.PatientName, a.Treatment),
		Description:   description,
		Start:         start,
		End:           end,
		AttendeeEmail: a.PatientEmail,
		AttendeeName:  a.PatientName,
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			s.logger.Warn("marshal event payload failed", "event_type", eventType, "error", err)
			data = nil
		}
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.ledger.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("insert booking event failed",
			"event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}
