package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kmetro/induction/core/metrics"
)

// PromSink records induction outcomes in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	cycles      *prometheus.CounterVec
	solves      *prometheus.HistogramVec
	deployments *prometheus.CounterVec
	fleet       *prometheus.GaugeVec
}

// NewPromSink registers induction metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink() (coremetrics.MetricsSink, error) {
	s, err := NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "induction_assignments_total",
		Help: "Total number of per-train induction assignments",
	}, []string{"status", "solver"})
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "induction_cycle_results_total",
		Help: "Total number of induction cycle results",
	}, []string{"solver", "status", "below_quota"})
	solves := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "induction_solver_duration_seconds",
		Help:    "Wall clock time spent per solver attempt",
		Buckets: prometheus.DefBuckets,
	}, []string{"solver", "outcome"})
	deployments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "induction_emergency_deployments_total",
		Help: "Total number of emergency backup deployments",
	}, []string{"kind", "severity"})
	fleet := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "induction_fleet_status",
		Help: "Number of trains per status after the latest cycle",
	}, []string{"status"})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(solves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solves = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(deployments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			deployments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fleet); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fleet = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		assignments: assignments,
		cycles:      cycles,
		solves:      solves,
		deployments: deployments,
		fleet:       fleet,
	}, nil
}

// RecordSchedule increments the assignment counter for each record.
func (s *PromSink) RecordSchedule(recs []coremetrics.ScheduleRecord) error {
	for _, r := range recs {
		s.assignments.WithLabelValues(r.Status.String(), r.Solver).Inc()
	}
	return nil
}

// RecordCycle increments the cycle counter and refreshes the fleet gauges.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.Solver, ev.Status.String(), strconv.FormatBool(ev.BelowQuota)).Inc()
	s.fleet.WithLabelValues("service").Set(float64(ev.Summary.Service))
	s.fleet.WithLabelValues("standby").Set(float64(ev.Summary.Standby))
	s.fleet.WithLabelValues("maintenance").Set(float64(ev.Summary.Maintenance))
	s.fleet.WithLabelValues("cleaning").Set(float64(ev.Summary.Cleaning))
	return nil
}

// RecordSolver observes the duration of a solver attempt.
func (s *PromSink) RecordSolver(ev coremetrics.SolverEvent) error {
	s.solves.WithLabelValues(ev.Solver, ev.Outcome).Observe(ev.Duration.Seconds())
	return nil
}

// RecordDeployment increments the emergency deployment counter.
func (s *PromSink) RecordDeployment(ev coremetrics.DeploymentEvent) error {
	s.deployments.WithLabelValues(ev.Kind.String(), ev.Severity.String()).Inc()
	return nil
}
