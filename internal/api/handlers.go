package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yuemei/clinic-booking/internal/booking"
	"github.com/yuemei/clinic-booking/internal/schedule"
)

func createAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), booking.CreateAppointmentInput{
			PatientName:     req.PatientName,
			PatientPhone:    req.PatientPhone,
			PatientEmail:    req.PatientEmail,
			Date:            req.Date,
			Time:            req.Time,
			DurationMinutes: req.DurationMinutes,
			Type:            req.AppointmentType,
			PeopleCount:     req.PeopleCount,
			Treatment:       req.Treatment,
			Notes:           req.Notes,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patch := booking.UpdatePatch{
			PatientName:     req.PatientName,
			PatientPhone:    req.PatientPhone,
			PatientEmail:    req.PatientEmail,
			Date:            req.Date,
			Time:            req.Time,
			DurationMinutes: req.DurationMinutes,
			PeopleCount:     req.PeopleCount,
			Treatment:       req.Treatment,
			Notes:           req.Notes,
		}
		if req.AppointmentType != nil {
			t := schedule.AppointmentType(*req.AppointmentType)
			patch.Type = &t
		}

		appt, err := svc.UpdateAppointment(r.Context(), id, patch)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.CancelAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.CompleteAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		appts, err := svc.ListByDate(r.Context(), date)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func searchAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("q")
		if term == "" {
			writeError(w, http.StatusBadRequest, "missing_query", "q query parameter is required")
			return
		}

		appts, err := svc.Search(r.Context(), term)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func daySlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		slots, err := svc.DaySlots(r.Context(), date)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

func daySummaryHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		summary, err := svc.Summary(r.Context(), date)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func exportScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		appts, err := svc.ListByDate(r.Context(), date)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="schedule_`+date+`.csv"`)

		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"time", "patient_name", "treatment", "status"})
		for _, a := range appts {
			_ = cw.Write([]string{a.Time, a.PatientName, a.Treatment, string(a.Status)})
		}
		cw.Flush()
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	var (
		validation  *booking.ValidationError
		unavailable *booking.SlotUnavailableError
		notFound    *booking.NotFoundError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_error", validation.Error())
	case errors.As(err, &unavailable):
		code := "slot_unavailable"
		switch unavailable.Reason {
		case booking.UnavailableClosed:
			code = "slot_closed"
		case booking.UnavailableFull:
			code = "slot_full"
		}
		writeError(w, http.StatusConflict, code, unavailable.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", notFound.Error())
	case errors.Is(err, booking.ErrSlotBusy):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
