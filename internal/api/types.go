package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yuemei/clinic-booking/internal/booking"
)

type CreateAppointmentRequest struct {
	PatientName     string `json:"patient_name"`
	PatientPhone    string `json:"patient_phone"`
	PatientEmail    string `json:"patient_email,omitempty"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	AppointmentType string `json:"appointment_type"`
	PeopleCount     int    `json:"people_count"`
	Treatment       string `json:"treatment,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// UpdateAppointmentRequest uses pointers so absent fields stay untouched.
type UpdateAppointmentRequest struct {
	PatientName     *string `json:"patient_name,omitempty"`
	PatientPhone    *string `json:"patient_phone,omitempty"`
	PatientEmail    *string `json:"patient_email,omitempty"`
	Date            *string `json:"date,omitempty"`
	Time            *string `json:"time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	AppointmentType *string `json:"appointment_type,omitempty"`
	PeopleCount     *int    `json:"people_count,omitempty"`
	Treatment       *string `json:"treatment,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID              string    `json:"id"`
	PatientName     string    `json:"patient_name"`
	PatientPhone    string    `json:"patient_phone"`
	PatientEmail    string    `json:"patient_email,omitempty"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	AppointmentType string    `json:"appointment_type"`
	PeopleCount     int       `json:"people_count"`
	Treatment       string    `json:"treatment,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientName:     a.PatientName,
		PatientPhone:    a.PatientPhone,
		PatientEmail:    a.PatientEmail,
		Date:            a.Date,
		Time:            a.Time,
		DurationMinutes: a.DurationMinutes,
		AppointmentType: string(a.Type),
		PeopleCount:     a.PeopleCount,
		Treatment:       a.Treatment,
		Notes:           a.Notes,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toAppointmentResponses(appts []booking.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
