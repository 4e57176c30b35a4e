package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/yuemei/clinic-booking/internal/booking"
	"github.com/yuemei/clinic-booking/internal/config"
	"github.com/yuemei/clinic-booking/internal/db"
	redisclient "github.com/yuemei/clinic-booking/internal/redis"
	"github.com/yuemei/clinic-booking/internal/schedule"
	"github.com/yuemei/clinic-booking/pkg/logging"
)

var treatments = []string{
	"諮詢",
	"皮秒雷射",
	"淨膚雷射",
	"音波拉提",
	"玻尿酸注射",
	"肉毒桿菌",
	"杏仁酸煥膚",
}

var appointmentTypes = []struct {
	name   string
	people int
}{
	{"single", 1},
	{"double", 2},
	{"consultation", 1},
	{"friends", 2},
}

// seed fills the coming days with fake bookings through the regular
// booking service, so all validation and capacity rules apply. Full and
// contended slots are skipped, not treated as failures.
func main() {
	days := flag.Int("days", 7, "number of days ahead to seed")
	perDay := flag.Int("per-day", 12, "booking attempts per day")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("seed starting", "days", *days, "per_day", *perDay)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("timezone error", "error", err)
		os.Exit(1)
	}
	table, err := cfg.ScheduleTable()
	if err != nil {
		logger.Error("schedule table error", "error", err)
		os.Exit(1)
	}
	gen := schedule.NewGenerator(table, cfg.SlotDurationMinutes, cfg.SlotCapacity)

	var (
		ledger booking.Ledger
		locker redisclient.Locker
	)
	if cfg.UsePostgres() {
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolConfig{
			MaxConns: int32(cfg.PostgresMaxConn),
			MinConns: int32(cfg.PostgresMinConn),
		})
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		ledger = booking.NewPgLedger(pool, cfg.SlotCapacity)
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	} else {
		memLedger, err := booking.NewMemoryLedger(ctx, cfg.SlotCapacity, booking.NewFileStore(cfg.SnapshotPath))
		if err != nil {
			logger.Error("load snapshot", "error", err)
			os.Exit(1)
		}
		ledger = memLedger
		locker = booking.NewLocalLocker()
	}

	svc := booking.NewService(ledger, locker, table, gen, booking.Options{
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		Timezone:               loc,
	}, logger)

	gofakeit.Seed(time.Now().UnixNano())

	created, skipped := 0, 0
	for d := 1; d <= *days; d++ {
		date := time.Now().In(loc).AddDate(0, 0, d).Format(schedule.DateLayout)

		slots, err := gen.Generate(date)
		if err != nil {
			logger.Error("generate slots", "date", date, "error", err)
			os.Exit(1)
		}
		if len(slots) == 0 {
			continue // closed day
		}

		for i := 0; i < *perDay; i++ {
			slot := slots[gofakeit.Number(0, len(slots)-1)]
			apptType := appointmentTypes[gofakeit.Number(0, len(appointmentTypes)-1)]

			_, err := svc.CreateAppointment(ctx, booking.CreateAppointmentInput{
				PatientName:  gofakeit.Name(),
				PatientPhone: "09" + gofakeit.DigitN(8),
				PatientEmail: gofakeit.Email(),
				Date:         date,
				Time:         slot.Time,
				Type:         apptType.name,
				PeopleCount:  apptType.people,
				Treatment:    treatments[gofakeit.Number(0, len(treatments)-1)],
			})
			switch {
			case err == nil:
				created++
			case isSlotRejection(err):
				skipped++
			default:
				logger.Error("seed booking failed", "date", date, "time", slot.Time, "error", err)
				os.Exit(1)
			}
		}
	}

	logger.Info("seed complete", "created", created, "skipped", skipped)
}

func isSlotRejection(err error) bool {
	var unavailable *booking.SlotUnavailableError
	return errors.As(err, &unavailable) || errors.Is(err, booking.ErrSlotBusy)
}
