package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking flow. All observe methods
// are nil-safe so wiring stays optional.
type BookingMetrics struct {
	createdTotal   *prometheus.CounterVec
	conflictsTotal *prometheus.CounterVec
	statusTotal    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "created_total",
			Help:      "Appointments created, by appointment type",
		}, []string{"appointment_type"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "slot_conflicts_total",
			Help:      "Rejected bookings, by reason (closed, full, busy)",
		}, []string{"reason"}),
		statusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "status_transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"to"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.conflictsTotal, m.statusTotal)
	return m
}

func (m *BookingMetrics) ObserveCreated(appointmentType string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(appointmentType).Inc()
}

func (m *BookingMetrics) ObserveConflict(reason string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(reason).Inc()
}

func (m *BookingMetrics) ObserveStatus(to string) {
	if m == nil {
		return
	}
	m.statusTotal.WithLabelValues(to).Inc()
}
