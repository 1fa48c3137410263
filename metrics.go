package authcore

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Manager's prometheus counters. All methods are nil-safe
// so the hot paths never branch on whether metrics are configured.
type metrics struct {
	logins            prometheus.Counter
	loginFailures     prometheus.Counter
	refreshes         prometheus.Counter
	reuseDetections   prometheus.Counter
	logouts           prometheus.Counter
	revokedSessions   prometheus.Counter
	singleUseIssued   *prometheus.CounterVec
	singleUseConsumed *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "logins_total",
			Help:      "Successful logins.",
		}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "login_failures_total",
			Help:      "Rejected login attempts (bad credentials or inactive account).",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "refresh_rotations_total",
			Help:      "Successful refresh token rotations.",
		}),
		reuseDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "refresh_reuse_detections_total",
			Help:      "Refresh calls that presented an already-rotated token.",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "logouts_total",
			Help:      "Sessions ended by explicit logout.",
		}),
		revokedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "revoked_sessions_total",
			Help:      "Sessions removed by revoke-all operations.",
		}),
		singleUseIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "single_use_tokens_issued_total",
			Help:      "Single-use tokens issued, by purpose.",
		}, []string{"purpose"}),
		singleUseConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "single_use_tokens_consumed_total",
			Help:      "Single-use tokens consumed successfully, by purpose.",
		}, []string{"purpose"}),
	}

	reg.MustRegister(
		m.logins,
		m.loginFailures,
		m.refreshes,
		m.reuseDetections,
		m.logouts,
		m.revokedSessions,
		m.singleUseIssued,
		m.singleUseConsumed,
	)
	return m
}

func (m *metrics) incLogin() {
	if m != nil {
		m.logins.Inc()
	}
}

func (m *metrics) incLoginFailure() {
	if m != nil {
		m.loginFailures.Inc()
	}
}

func (m *metrics) incRefresh() {
	if m != nil {
		m.refreshes.Inc()
	}
}

func (m *metrics) incReuseDetected() {
	if m != nil {
		m.reuseDetections.Inc()
	}
}

func (m *metrics) incLogout() {
	if m != nil {
		m.logouts.Inc()
	}
}

func (m *metrics) addRevoked(n int) {
	if m != nil && n > 0 {
		m.revokedSessions.Add(float64(n))
	}
}

func (m *metrics) incSingleUseIssued(purpose string) {
	if m != nil {
		m.singleUseIssued.WithLabelValues(purpose).Inc()
	}
}

func (m *metrics) incSingleUseConsumed(purpose string) {
	if m != nil {
		m.singleUseConsumed.WithLabelValues(purpose).Inc()
	}
}
