package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/yuemei/clinic-booking/internal/booking"
	"github.com/yuemei/clinic-booking/pkg/logging"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *logging.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/slots", daySlotsHandler(cfg.Service))

	r.Post("/appointments", createAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/search", searchAppointmentsHandler(cfg.Service))
	r.Get("/appointments/summary", daySummaryHandler(cfg.Service))
	r.Get("/appointments/export", exportScheduleHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))

	return r
}
