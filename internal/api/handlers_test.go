package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuemei/clinic-booking/internal/booking"
	"github.com/yuemei/clinic-booking/internal/schedule"
	"github.com/yuemei/clinic-booking/pkg/logging"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	ledger, err := booking.NewMemoryLedger(context.Background(), 2, nil)
	require.NoError(t, err)

	table := schedule.DefaultTable()
	gen := schedule.NewGenerator(table, 15, 2)
	svc := booking.NewService(ledger, booking.NewLocalLocker(), table, gen, booking.Options{}, logging.New("error"))

	return NewRouter(RouterConfig{
		Service: svc,
		Logger:  logging.New("error"),
		Env:     "test",
		Version: "test",
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validCreateBody() map[string]any {
	return map[string]any{
		"patient_name":     "王小姐",
		"patient_phone":    "0912345678",
		"date":             "2024-09-25",
		"time":             "14:00",
		"appointment_type": "double",
		"people_count":     2,
		"treatment":        "皮秒雷射",
	}
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/appointments", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.Equal(t, "王小姐", resp.PatientName)
	require.Equal(t, "scheduled", resp.Status)
	require.Equal(t, 60, resp.DurationMinutes)
}

func TestCreateAppointmentValidation(t *testing.T) {
	router := newTestRouter(t)

	body := validCreateBody()
	delete(body, "patient_phone")

	rec := doJSON(t, router, http.MethodPost, "/appointments", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "validation_error", errResp.Error)
	require.Contains(t, errResp.Details, "patient_phone")
}

func TestCreateAppointmentClosedDay(t *testing.T) {
	router := newTestRouter(t)

	body := validCreateBody()
	body["date"] = "2024-09-22" // Sunday

	rec := doJSON(t, router, http.MethodPost, "/appointments", body)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "slot_closed", errResp.Error)
}

func TestCreateAppointmentFullSlot(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/appointments", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	second := validCreateBody()
	second["patient_name"] = "陳先生"
	second["patient_phone"] = "0922333444"
	second["appointment_type"] = "single"
	second["people_count"] = 1

	rec = doJSON(t, router, http.MethodPost, "/appointments", second)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "slot_full", errResp.Error)
}

func TestGetAppointmentNotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/appointments/no-such-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "appointment_not_found", errResp.Error)
}

func TestCancelFlowThroughAPI(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/appointments", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodPost, "/appointments/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	require.Equal(t, "cancelled", cancelled.Status)

	// Cancelling twice is an invalid transition.
	rec = doJSON(t, router, http.MethodPost, "/appointments/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	// The freed slot accepts a new booking.
	rec = doJSON(t, router, http.MethodPost, "/appointments", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestUpdateAppointmentEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/appointments", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodPatch, "/appointments/"+created.ID, map[string]any{
		"time":  "15:00",
		"notes": "改約下午三點",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "15:00", updated.Time)
	require.Equal(t, "改約下午三點", updated.Notes)
}

func TestDaySlotsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/slots?date=2024-09-25", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []booking.SlotAvailability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, 32)
	require.Equal(t, "12:00", slots[0].Time)
	require.Equal(t, "19:45", slots[len(slots)-1].Time)

	rec = doJSON(t, router, http.MethodGet, "/slots", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/appointments", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/appointments/summary?date=2024-09-25", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary booking.DaySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 1, summary.Total)
	require.Equal(t, 1, summary.Scheduled)
	require.Equal(t, 31, summary.AvailableSlots)
}

func TestExportEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/appointments", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/appointments/export?date=2024-09-25", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "time,patient_name,treatment,status", lines[0])
	require.Contains(t, lines[1], "王小姐")
}

func TestSearchEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/appointments", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/appointments/search?q="+`%E7%8E%8B`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var found []AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)

	rec = doJSON(t, router, http.MethodGet, "/appointments/search", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	require.Equal(t, "ok", ready.Status)
	require.Empty(t, ready.Dependencies)
}
