package induction

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cyclesTotal     *prometheus.CounterVec
	solverFallbacks *prometheus.CounterVec
	solveDuration   *prometheus.HistogramVec
	fleetStatus     *prometheus.GaugeVec
	serviceGap      prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.GaugeVec, prometheus.Gauge) {
	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "induction_cycles_total",
			Help: "Number of induction cycles by winning solver and status",
		},
		[]string{"solver", "status"},
	)
	fb := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "induction_solver_fallbacks_total",
			Help: "Number of solver fallback transitions",
		},
		[]string{"action"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "induction_solve_duration_seconds",
			Help:    "Wall clock duration of solver attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"solver"},
	)
	fleet := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "induction_fleet_assignments",
			Help: "Trains per assigned status after the latest cycle",
		},
		[]string{"status"},
	)
	gap := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "induction_service_quota_gap",
			Help: "Service quota minus trains actually assigned to service",
		},
	)
	return cycles, fb, dur, fleet, gap
}

func init() {
	cyclesTotal, solverFallbacks, solveDuration, fleetStatus, serviceGap = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers induction metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(cyclesTotal, solverFallbacks, solveDuration, fleetStatus, serviceGap)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	cyclesTotal, solverFallbacks, solveDuration, fleetStatus, serviceGap = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
