package metrics

import coremetrics "github.com/kmetro/induction/core/metrics"

// MultiSink fanouts induction records to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSchedule forwards the records to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSchedule(recs []coremetrics.ScheduleRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordSchedule(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordCycle forwards cycle summaries.
func (m *MultiSink) RecordCycle(ev coremetrics.CycleEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CycleRecorder); ok {
			if err := rec.RecordCycle(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSolver forwards solver attempt events.
func (m *MultiSink) RecordSolver(ev coremetrics.SolverEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SolverRecorder); ok {
			if err := rec.RecordSolver(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDeployment forwards emergency deployment events.
func (m *MultiSink) RecordDeployment(ev coremetrics.DeploymentEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.DeploymentRecorder); ok {
			if err := rec.RecordDeployment(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
