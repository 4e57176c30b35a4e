package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/yuemei/clinic-booking/internal/api"
	"github.com/yuemei/clinic-booking/internal/booking"
	"github.com/yuemei/clinic-booking/internal/config"
	"github.com/yuemei/clinic-booking/internal/db"
	"github.com/yuemei/clinic-booking/internal/mirror"
	"github.com/yuemei/clinic-booking/internal/notify"
	"github.com/yuemei/clinic-booking/internal/observability/metrics"
	redisclient "github.com/yuemei/clinic-booking/internal/redis"
	"github.com/yuemei/clinic-booking/internal/schedule"
	"github.com/yuemei/clinic-booking/pkg/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		pgPool *pgxpool.Pool
		rdb    *redis.Client
	)

	if cfg.UsePostgres() {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolConfig{
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

		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Error("redis connection error", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		}()
		logger.Info("connected to Redis")

		ledger = booking.NewPgLedger(pgPool, cfg.SlotCapacity)
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	} else {
		logger.Info("no POSTGRES_DSN set, running on the in-memory ledger", "snapshot", cfg.SnapshotPath)

		memLedger, err := booking.NewMemoryLedger(rootCtx, cfg.SlotCapacity, booking.NewFileStore(cfg.SnapshotPath))
		if err != nil {
			logger.Error("load snapshot error", "error", err)
			os.Exit(1)
		}
		ledger = memLedger
		locker = booking.NewLocalLocker()
	}

	var dispatcher *mirror.Dispatcher
	if cfg.GoogleCredentialsFile != "" {
		cal, err := mirror.NewGoogleCalendar(rootCtx, cfg.GoogleCredentialsFile, cfg.GoogleCalendarID, loc)
		if err != nil {
			logger.Error("calendar mirror init error", "error", err)
			os.Exit(1)
		}
		dispatcher = mirror.NewDispatcher(cal, logger, 10*time.Second)
		logger.Info("calendar mirror enabled", "calendar_id", cfg.GoogleCalendarID)
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

	svc := booking.NewService(ledger, locker, table, gen, booking.Options{
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		Timezone:               loc,
		Mirror:                 dispatcher,
		Notifier:               notifier,
		Metrics:                metrics.NewBookingMetrics(nil),
	}, logger)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
}
