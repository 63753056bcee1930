package loadmgr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler's prometheus collectors.
type Metrics struct {
	Queued    prometheus.Gauge
	InFlight  prometheus.Gauge
	Started   *prometheus.CounterVec
	Completed *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Cancelled prometheus.Counter
	Unloaded  *prometheus.CounterVec
}

// NewMetrics registers the scheduler collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Queued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "hlod",
			Subsystem: "loader",
			Name:      "queued",
			Help:      "Loads waiting for an in-flight slot",
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "hlod",
			Subsystem: "loader",
			Name:      "in_flight",
			Help:      "Loads handed to a source and not yet completed",
		}),
		Started: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hlod",
			Subsystem: "loader",
			Name:      "started_total",
			Help:      "Loads handed to a source",
		}, []string{"category"}),
		Completed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hlod",
			Subsystem: "loader",
			Name:      "completed_total",
			Help:      "Loads delivered back to their controller",
		}, []string{"category"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hlod",
			Subsystem: "loader",
			Name:      "failed_total",
			Help:      "Loads that completed with an error",
		}, []string{"category"}),
		Cancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "hlod",
			Subsystem: "loader",
			Name:      "cancelled_total",
			Help:      "Queued loads cancelled before reaching a source",
		}),
		Unloaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hlod",
			Subsystem: "loader",
			Name:      "unloaded_total",
			Help:      "Objects handed back to their source",
		}, []string{"category"}),
	}
}

// The helpers below accept a nil receiver so a Manager without metrics needs no checks.

func (m *Metrics) queued(delta float64) {
	if m != nil {
		m.Queued.Add(delta)
	}
}

func (m *Metrics) started(c Category) {
	if m != nil {
		m.Started.WithLabelValues(c.String()).Inc()
		m.InFlight.Inc()
	}
}

func (m *Metrics) completed(c Category, err error) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.Completed.WithLabelValues(c.String()).Inc()
	if err != nil {
		m.Failed.WithLabelValues(c.String()).Inc()
	}
}

func (m *Metrics) cancelled() {
	if m != nil {
		m.Cancelled.Inc()
	}
}

func (m *Metrics) unloaded(c Category) {
	if m != nil {
		m.Unloaded.WithLabelValues(c.String()).Inc()
	}
}
