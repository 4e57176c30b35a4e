package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgLedger stores appointments in Postgres for server deployments where the
// session outlives a single process.
type PgLedger struct {
	pool     *pgxpool.Pool
	capacity int
}

func NewPgLedger(pool *pgxpool.Pool, capacity int) *PgLedger {
	if capacity <= 0 {
		capacity = 1
	}
	return &PgLedger{pool: pool, capacity: capacity}
}

const appointmentColumns = `
	id, patient_name, patient_phone, patient_email, date, time,
	duration_minutes, appointment_type, people_count, treatment, notes,
	status, created_at, updated_at
`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var email, treatment, notes *string

	err := row.Scan(
		&a.ID,
		&a.PatientName,
		&a.PatientPhone,
		&email,
		&a.Date,
		&a.Time,
		&a.DurationMinutes,
		&a.Type,
		&a.PeopleCount,
		&treatment,
		&notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if email != nil {
		a.PatientEmail = *email
	}
	if treatment != nil {
		a.Treatment = *treatment
	}
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgLedger) AvailablePeopleAt(ctx context.Context, date, tm string) (int, error) {
	var booked int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(people_count), 0)
		FROM appointments
		WHERE date = $1 AND time = $2 AND status <> 'cancelled'
	`, date, tm).Scan(&booked)
	if err != nil {
		return 0, fmt.Errorf("sum booked people: %w", err)
	}

	available := r.capacity - booked
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (r *PgLedger) Add(ctx context.Context, appt *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_name, patient_phone, patient_email, date, time,
			duration_minutes, appointment_type, people_count, treatment, notes,
			status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		appt.ID, appt.PatientName, appt.PatientPhone, nullable(appt.PatientEmail),
		appt.Date, appt.Time, appt.DurationMinutes, appt.Type, appt.PeopleCount,
		nullable(appt.Treatment), nullable(appt.Notes), appt.Status,
		appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgLedger) UpdateByID(ctx context.Context, id string, patch UpdatePatch) (*Appointment, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+appointmentColumns+`FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load appointment: %w", err)
	}

	applyPatch(a, patch)
	a.UpdatedAt = time.Now()

	_, err = r.pool.Exec(ctx, `
		UPDATE appointments
		SET patient_name = $2, patient_phone = $3, patient_email = $4,
		    date = $5, time = $6, duration_minutes = $7, appointment_type = $8,
		    people_count = $9, treatment = $10, notes = $11, updated_at = $12
		WHERE id = $1
	`,
		a.ID, a.PatientName, a.PatientPhone, nullable(a.PatientEmail),
		a.Date, a.Time, a.DurationMinutes, a.Type, a.PeopleCount,
		nullable(a.Treatment), nullable(a.Notes), a.UpdatedAt,
	)
	if err != nil {
		return nil, true, fmt.Errorf("update appointment: %w", err)
	}

	return a, true, nil
}

func (r *PgLedger) SetStatus(ctx context.Context, id string, from, to Status) (*Appointment, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING`+appointmentColumns, id, to, from)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("set appointment status: %w", err)
	}
	return a, true, nil
}

func (r *PgLedger) FindByID(ctx context.Context, id string) (*Appointment, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+appointmentColumns+`FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load appointment: %w", err)
	}
	return a, true, nil
}

func (r *PgLedger) FindByDate(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE date = $1
		ORDER BY time, id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by date: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgLedger) Search(ctx context.Context, term string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE patient_name ILIKE '%' || $1 || '%'
		   OR patient_phone LIKE '%' || $1 || '%'
		   OR treatment ILIKE '%' || $1 || '%'
		ORDER BY date, time, id
	`, term)
	if err != nil {
		return nil, fmt.Errorf("search appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgLedger) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
