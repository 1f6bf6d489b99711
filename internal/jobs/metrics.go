package jobs

import (
	"github.com/prometheus/client_golang/prometheus"

	"aieditor/internal/domain"
)

// Metrics tracks job throughput. A nil *Metrics records nothing.
type Metrics struct {
	submitted         *prometheus.CounterVec
	finished          *prometheus.CounterVec
	pollAttempts      *prometheus.HistogramVec
	denials           *prometheus.CounterVec
	incrementFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_jobs_submitted_total",
				Help: "Predictions accepted by the provider",
			},
			[]string{"kind"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_jobs_finished_total",
				Help: "Jobs that reached a terminal state",
			},
			[]string{"kind", "state"},
		),
		pollAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "editor_job_poll_attempts",
				Help:    "Status queries issued per job",
				Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 120},
			},
			[]string{"kind"},
		),
		denials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_gate_denials_total",
				Help: "Requests refused by the operation gate",
			},
			[]string{"reason"},
		),
		incrementFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_quota_increment_failures_total",
				Help: "Quota increments that failed after a successful job",
			},
			[]string{"feature"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.submitted, m.finished, m.pollAttempts, m.denials, m.incrementFailures)
	}
	return m
}

func (m *Metrics) jobSubmitted(kind domain.OperationKind) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) jobFinished(job *domain.Job) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(string(job.Kind), string(job.State)).Inc()
	m.pollAttempts.WithLabelValues(string(job.Kind)).Observe(float64(job.Attempts))
}

func (m *Metrics) denied(reason domain.DenialReason) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) incrementFailed(feature domain.Feature) {
	if m == nil {
		return
	}
	m.incrementFailures.WithLabelValues(string(feature)).Inc()
}
