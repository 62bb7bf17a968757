package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ConnectionsTotal  prometheus.Gauge
	QueueSize         prometheus.Gauge
	ActiveDuels       prometheus.Gauge
	MessagesReceived  prometheus.Counter
	MessagesSent      prometheus.Counter
	MatchesTotal      prometheus.Counter
	SubmissionsTotal  *prometheus.CounterVec
	SubmissionLatency prometheus.Histogram
	DuelsResolved     *prometheus.CounterVec
	AuthFailures      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "duel_ws_connections_total",
			Help: "Total number of active WebSocket connections",
		}),
		QueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "duel_matchmaking_queue_size",
			Help: "Number of players waiting in the matchmaking queue",
		}),
		ActiveDuels: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "duel_active_sessions",
			Help: "Number of live duel sessions",
		}),
		MessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duel_ws_messages_received_total",
			Help: "Total number of messages received from clients",
		}),
		MessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duel_ws_messages_sent_total",
			Help: "Total number of messages sent to clients",
		}),
		MatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duel_matches_total",
			Help: "Total number of matched pairs",
		}),
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_submissions_total",
			Help: "Total number of code submissions judged",
		}, []string{"status"}),
		SubmissionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "duel_submission_duration_seconds",
			Help:    "End-to-end submission handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		DuelsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_resolved_total",
			Help: "Total number of duels resolved",
		}, []string{"outcome"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duel_ws_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
	}
}

func (m *Metrics) IncConnections() {
	m.ConnectionsTotal.Inc()
}

func (m *Metrics) DecConnections() {
	m.ConnectionsTotal.Dec()
}

func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

func (m *Metrics) SetActiveDuels(count int) {
	m.ActiveDuels.Set(float64(count))
}

func (m *Metrics) IncMessagesReceived() {
	m.MessagesReceived.Inc()
}

func (m *Metrics) IncMessagesSent() {
	m.MessagesSent.Inc()
}

func (m *Metrics) IncMatches() {
	m.MatchesTotal.Inc()
}

func (m *Metrics) IncSubmissions(status string) {
	m.SubmissionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSubmissionLatency(seconds float64) {
	m.SubmissionLatency.Observe(seconds)
}

func (m *Metrics) IncDuelsResolved(outcome string) {
	m.DuelsResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncAuthFailures() {
	m.AuthFailures.Inc()
}
