package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for the call-handling flow.
type CallMetrics struct {
	callsTotal    *prometheus.CounterVec
	pollOutcome   *prometheus.CounterVec
	tokenRefresh  *prometheus.CounterVec
	bookingsTotal *prometheus.CounterVec
	emailsTotal   *prometheus.CounterVec
	callDuration  prometheus.Histogram
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ivr",
			Subsystem: "calls",
			Name:      "total",
			Help:      "Calls handled, labeled by final state",
		}, []string{"final_state"}),
		pollOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ivr",
			Subsystem: "auth",
			Name:      "poll_outcome_total",
			Help:      "Authorization poll loops, labeled by outcome",
		}, []string{"outcome"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ivr",
			Subsystem: "auth",
			Name:      "token_refresh_total",
			Help:      "Token refresh attempts, labeled by result",
		}, []string{"result"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ivr",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts, labeled by result",
		}, []string{"result"}),
		emailsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ivr",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Confirmation emails, labeled by result",
		}, []string{"result"}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ivr",
			Subsystem: "calls",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a handled call",
			Buckets:   []float64{5, 15, 30, 60, 120, 180, 300},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.pollOutcome, m.tokenRefresh, m.bookingsTotal, m.emailsTotal, m.callDuration)
	return m
}

func (m *CallMetrics) ObserveCall(finalState string, seconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(finalState).Inc()
	m.callDuration.Observe(seconds)
}

func (m *CallMetrics) ObservePollOutcome(outcome string) {
	if m == nil {
		return
	}
	m.pollOutcome.WithLabelValues(outcome).Inc()
}

func (m *CallMetrics) ObserveTokenRefresh(ok bool) {
	if m == nil {
		return
	}
	m.tokenRefresh.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *CallMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *CallMetrics) ObserveEmail(ok bool) {
	if m == nil {
		return
	}
	m.emailsTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
