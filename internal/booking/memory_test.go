package booking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yuemei/clinic-booking/internal/schedule"
)

func testAppointment(id, name, phone, date, tm string, people int) *Appointment {
	now := time.Now()
	return &Appointment{
		ID:              id,
		PatientName:     name,
		PatientPhone:    phone,
		Date:            date,
		Time:            tm,
		DurationMinutes: 60,
		Type:            schedule.TypeSingle,
		PeopleCount:     people,
		Treatment:       "皮秒雷射",
		Status:          StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestMemoryLedgerAvailability(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewMemoryLedger(ctx, 2, nil)
	require.NoError(t, err)

	available, err := ledger.AvailablePeopleAt(ctx, "2024-09-25", "14:00")
	require.NoError(t, err)
	require.Equal(t, 2, available, "empty slot reports full capacity")

	require.NoError(t, ledger.Add(ctx, testAppointment("a1", "王小姐", "0912345678", "2024-09-25", "14:00", 1)))
	require.NoError(t, ledger.Add(ctx, testAppointment("a2", "林先生", "0922333444", "2024-09-25", "14:00", 1)))

	available, err = ledger.AvailablePeopleAt(ctx, "2024-09-25", "14:00")
	require.NoError(t, err)
	require.Equal(t, 0, available)

	// Other slots are unaffected.
	available, err = ledger.AvailablePeopleAt(ctx, "2024-09-25", "14:15")
	require.NoError(t, err)
	require.Equal(t, 2, available)

	// Cancelled appointments no longer count.
	_, ok, err := ledger.SetStatus(ctx, "a1", StatusScheduled, StatusCancelled)
	require.NoError(t, err)
	require.True(t, ok)

	available, err = ledger.AvailablePeopleAt(ctx, "2024-09-25", "14:00")
	require.NoError(t, err)
	require.Equal(t, 1, available)
}

func TestMemoryLedgerSetStatusGuardsFrom(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewMemoryLedger(ctx, 2, nil)
	require.NoError(t, err)

	require.NoError(t, ledger.Add(ctx, testAppointment("a1", "王小姐", "0912345678", "2024-09-25", "14:00", 1)))

	_, ok, err := ledger.SetStatus(ctx, "a1", StatusCompleted, StatusCancelled)
	require.NoError(t, err)
	require.False(t, ok, "transition must require the expected current status")

	_, ok, err = ledger.SetStatus(ctx, "missing", StatusScheduled, StatusCancelled)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryLedgerFindByDateOrdered(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewMemoryLedger(ctx, 2, nil)
	require.NoError(t, err)

	require.NoError(t, ledger.Add(ctx, testAppointment("a1", "王小姐", "0912345678", "2024-09-25", "16:00", 1)))
	require.NoError(t, ledger.Add(ctx, testAppointment("a2", "林先生", "0922333444", "2024-09-25", "12:30", 1)))
	require.NoError(t, ledger.Add(ctx, testAppointment("a3", "陳太太", "0933555777", "2024-09-26", "13:00", 1)))

	appts, err := ledger.FindByDate(ctx, "2024-09-25")
	require.NoError(t, err)
	require.Len(t, appts, 2)
	require.Equal(t, "12:30", appts[0].Time)
	require.Equal(t, "16:00", appts[1].Time)
}

func TestMemoryLedgerSearch(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewMemoryLedger(ctx, 2, nil)
	require.NoError(t, err)

	require.NoError(t, ledger.Add(ctx, testAppointment("a1", "王小姐", "0912345678", "2024-09-25", "14:00", 1)))
	require.NoError(t, ledger.Add(ctx, testAppointment("a2", "林先生", "0922333444", "2024-09-25", "15:00", 1)))

	byName, err := ledger.Search(ctx, "王")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, "a1", byName[0].ID)

	byPhone, err := ledger.Search(ctx, "0922")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	require.Equal(t, "a2", byPhone[0].ID)

	byTreatment, err := ledger.Search(ctx, "皮秒")
	require.NoError(t, err)
	require.Len(t, byTreatment, 2)

	none, err := ledger.Search(ctx, "不存在")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemoryLedgerUpdateByID(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewMemoryLedger(ctx, 2, nil)
	require.NoError(t, err)

	appt := testAppointment("a1", "王小姐", "0912345678", "2024-09-25", "14:00", 1)
	require.NoError(t, ledger.Add(ctx, appt))

	notes := "初次到診"
	updated, ok, err := ledger.UpdateByID(ctx, "a1", UpdatePatch{Notes: &notes})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "初次到診", updated.Notes)
	require.Equal(t, "王小姐", updated.PatientName, "untouched fields survive")

	_, ok, err = ledger.UpdateByID(ctx, "missing", UpdatePatch{Notes: &notes})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "appointments.json")
	store := NewFileStore(path)

	ledger, err := NewMemoryLedger(ctx, 2, store)
	require.NoError(t, err)

	require.NoError(t, ledger.Add(ctx, testAppointment("a1", "王小姐", "0912345678", "2024-09-25", "14:00", 2)))

	// A fresh ledger sees the previous session's state.
	reloaded, err := NewMemoryLedger(ctx, 2, store)
	require.NoError(t, err)

	appt, ok, err := reloaded.FindByID(ctx, "a1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "王小姐", appt.PatientName)

	available, err := reloaded.AvailablePeopleAt(ctx, "2024-09-25", "14:00")
	require.NoError(t, err)
	require.Equal(t, 0, available)
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))

	appts, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, appts)
}
