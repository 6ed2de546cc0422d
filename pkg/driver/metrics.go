package driver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus collectors shared by every Driver of a process.
type Metrics struct {
	Checkpoints   prometheus.Counter
	Undos         prometheus.Counter
	Pruned        prometheus.Counter
	Snapshots     prometheus.Gauge
	ApplyDuration prometheus.Histogram
	Aborts        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewind_checkpoints_total",
			Help: "Total number of checkpoints created",
		}),
		Undos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewind_undos_total",
			Help: "Total number of snapshots restored by undo",
		}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewind_pruned_total",
			Help: "Total number of snapshots discarded by the history bound",
		}),
		Snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewind_snapshots",
			Help: "Suspended snapshots currently held on undo stacks",
		}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rewind_apply_duration_seconds",
			Help:    "Duration of unit applications",
			Buckets: prometheus.DefBuckets,
		}),
		Aborts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_session_aborts_total",
				Help: "Sessions torn down after an unrecoverable error",
			},
			[]string{"reason"},
		),
	}
	reg.MustRegister(m.Checkpoints, m.Undos, m.Pruned, m.Snapshots, m.ApplyDuration, m.Aborts)
	return m
}
