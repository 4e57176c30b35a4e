package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yuemei/clinic-booking/internal/booking"
	"github.com/yuemei/clinic-booking/internal/config"
	"github.com/yuemei/clinic-booking/internal/db"
	"github.com/yuemei/clinic-booking/internal/notify"
	"github.com/yuemei/clinic-booking/internal/schedule"
	"github.com/yuemei/clinic-booking/pkg/logging"
)

// reminder-worker sends next-day reminders to patients with scheduled
// appointments. It runs on a cron schedule in the clinic's timezone,
// once per evening by default.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("reminder-worker starting up", "env", cfg.Env, "cron", cfg.ReminderCron)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("timezone error", "error", err)
		os.Exit(1)
	}

	var ledger booking.Ledger
	if cfg.UsePostgres() {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolConfig{
			MaxConns: int32(cfg.PostgresMaxConn),
			MinConns: int32(cfg.PostgresMinConn),
		})
		cancelPg()
		if err != nil {
			logger.Error("postgres connection error", "error", err)
			os.Exit(1)
		}
		defer pgPool.Close()
		logger.Info("connected to Postgres")

		ledger = booking.NewPgLedger(pgPool, cfg.SlotCapacity)
	} else {
		memLedger, err := booking.NewMemoryLedger(rootCtx, cfg.SlotCapacity, booking.NewFileStore(cfg.SnapshotPath))
		if err != nil {
			logger.Error("load snapshot error", "error", err)
			os.Exit(1)
		}
		ledger = memLedger
	}

	notifier := notify.New(notify.Config{
		SendGridAPIKey:   cfg.SendGridAPIKey,
		FromEmail:        cfg.SendGridFromEmail,
		FromName:         cfg.SendGridFromName,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
		ClinicName:       cfg.ClinicName,
	}, logger)

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.ReminderCron, func() {
		runOnce(rootCtx, ledger, notifier, loc, logger)
	})
	if err != nil {
		logger.Error("invalid REMINDER_CRON", "cron", cfg.ReminderCron, "error", err)
		os.Exit(1)
	}

	c.Start()
	defer c.Stop()

	<-rootCtx.Done()
	logger.Info("shutdown signal received, stopping reminder worker")
}

func runOnce(ctx context.Context, ledger booking.Ledger, notifier *notify.Service, loc *time.Location, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	tomorrow := time.Now().In(loc).AddDate(0, 0, 1).Format(schedule.DateLayout)

	appts, err := ledger.FindByDate(runCtx, tomorrow)
	if err != nil {
		logger.Error("reminder run error", "date", tomorrow, "error", err)
		return
	}

	sent := 0
	for _, appt := range appts {
		if appt.Status != booking.StatusScheduled {
			continue
		}
		notifier.AppointmentReminder(appt)
		sent++
	}

	logger.Info("reminder run complete", "date", tomorrow, "appointments", sent)
}
