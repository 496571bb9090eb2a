package metrics

import "github.com/prometheus/client_golang/prometheus"

// WizardMetrics exposes counters for the booking wizard flows.
type WizardMetrics struct {
	otpSendsTotal      *prometheus.CounterVec
	otpVerifiesTotal   *prometheus.CounterVec
	retryExhausted     *prometheus.CounterVec
	bookingsConfirmed  prometheus.Counter
	slotConflictsTotal prometheus.Counter
}

func NewWizardMetrics(reg prometheus.Registerer) *WizardMetrics {
	m := &WizardMetrics{
		otpSendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradein",
			Subsystem: "otp",
			Name:      "sends_total",
			Help:      "Total one-time passcode send attempts",
		}, []string{"status"}),
		otpVerifiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradein",
			Subsystem: "otp",
			Name:      "verifies_total",
			Help:      "Total passcode verification outcomes",
		}, []string{"result"}),
		retryExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradein",
			Subsystem: "backend",
			Name:      "retry_exhausted_total",
			Help:      "Operations that failed through their whole retry budget",
		}, []string{"operation"}),
		bookingsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradein",
			Subsystem: "booking",
			Name:      "confirmed_total",
			Help:      "Total confirmed branch appointments",
		}),
		slotConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradein",
			Subsystem: "booking",
			Name:      "slot_conflicts_total",
			Help:      "Bookings rejected because the slot was already taken",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.otpSendsTotal, m.otpVerifiesTotal, m.retryExhausted, m.bookingsConfirmed, m.slotConflictsTotal)
	return m
}

func (m *WizardMetrics) ObserveOTPSend(status string) {
	if m == nil {
		return
	}
	m.otpSendsTotal.WithLabelValues(status).Inc()
}

func (m *WizardMetrics) ObserveOTPVerify(result string) {
	if m == nil {
		return
	}
	m.otpVerifiesTotal.WithLabelValues(result).Inc()
}

func (m *WizardMetrics) ObserveRetryExhausted(operation string) {
	if m == nil {
		return
	}
	m.retryExhausted.WithLabelValues(operation).Inc()
}

func (m *WizardMetrics) ObserveBookingConfirmed() {
	if m == nil {
		return
	}
	m.bookingsConfirmed.Inc()
}

func (m *WizardMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflictsTotal.Inc()
}
