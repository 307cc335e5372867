package induction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kmetro/induction/core/events"
	"github.com/kmetro/induction/core/fleetstatus"
	coremetrics "github.com/kmetro/induction/core/metrics"
	"github.com/kmetro/induction/core/model"
	"github.com/kmetro/induction/internal/eventbus"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

// failingSolver is a solver stub that always errors.
type failingSolver struct{ name string }

func (s failingSolver) Name() string { return s.name }
func (s failingSolver) Solve(context.Context, Problem) (Proposal, error) {
	return Proposal{}, errors.New("solver blew up")
}

func newTestEngine(t *testing.T, cfg model.ConstraintConfig) *Engine {
	t.Helper()
	ResetMetrics(nil)
	e, err := NewEngine(cfg, nopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetClock(func() time.Time { return testNow })
	return e
}

func TestEngine_RejectsEmptyFleet(t *testing.T) {
	e := newTestEngine(t, testConfig())
	if _, err := e.RunCycle(context.Background(), nil); !errors.Is(err, model.ErrEmptyFleet) {
		t.Fatalf("expected ErrEmptyFleet, got %v", err)
	}
}

func TestEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceQuota = -1
	if _, err := NewEngine(cfg, nopLogger{}, nil, nil); err == nil {
		t.Fatalf("expected validation error for negative quota")
	}
}

func TestEngine_CycleMeetsQuota(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceQuota = 5
	e := newTestEngine(t, cfg)

	d, err := e.RunCycle(context.Background(), makeFleet(12))
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if d.Summary.Service != 5 {
		t.Fatalf("service = %d, want 5", d.Summary.Service)
	}
	if d.BelowQuota {
		t.Errorf("quota met, below-quota must be false")
	}
	if d.SolverUsed != "exact" {
		t.Errorf("solver used = %s, want exact", d.SolverUsed)
	}
	if d.Summary.Total != 12 {
		t.Errorf("summary total = %d, want 12", d.Summary.Total)
	}
}

func TestEngine_ClockPinsCertificateEvaluation(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceQuota = 2
	e := newTestEngine(t, cfg)

	// Valid for one hour past the pinned instant, long expired on the
	// wall clock.
	fleet := makeFleet(3)
	for i := range fleet {
		fleet[i].RollingStockCert.ExpiresAt = testNow.Add(time.Hour)
		fleet[i].SignallingCert.ExpiresAt = testNow.Add(time.Hour)
		fleet[i].TelecomCert.ExpiresAt = testNow.Add(time.Hour)
	}

	d, err := e.RunCycle(context.Background(), fleet)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if !d.GeneratedAt.Equal(testNow) {
		t.Errorf("GeneratedAt = %v, want pinned %v", d.GeneratedAt, testNow)
	}
	if d.Summary.Service != 2 {
		t.Fatalf("certificates valid at the pinned instant must clear eligibility, service = %d", d.Summary.Service)
	}
	if len(d.Excluded) != 0 {
		t.Errorf("unexpected exclusions: %v", d.Excluded)
	}
}

func TestEngine_InputFleetNotMutated(t *testing.T) {
	e := newTestEngine(t, testConfig())
	fleet := makeFleet(8)
	if _, err := e.RunCycle(context.Background(), fleet); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	for _, tr := range fleet {
		if tr.Status != model.StatusStandby || tr.Score != 0 || len(tr.Rationale) != 0 {
			t.Fatalf("input record %s mutated: %+v", tr.ID, tr)
		}
	}
}

func TestEngine_SafetyInvariant(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceQuota = 10
	e := newTestEngine(t, cfg)

	fleet := makeFleet(12)
	fleet[0].CriticalJobCard = true
	fleet[1].SignallingCert = model.FitnessCertificate{}
	fleet[2].BrakeWearPct = 99

	d, err := e.RunCycle(context.Background(), fleet)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	for _, id := range []string{"KM-01", "KM-02", "KM-03"} {
		tr := d.Train(id)
		if tr == nil {
			t.Fatalf("train %s missing from decision", id)
		}
		if tr.Status == model.StatusService {
			t.Errorf("barred train %s reached service", id)
		}
	}
	if len(d.Excluded) != 3 {
		t.Errorf("excluded = %d, want 3", len(d.Excluded))
	}
}

func TestEngine_BelowQuotaBestEffort(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceQuota = 13
	e := newTestEngine(t, cfg)

	d, err := e.RunCycle(context.Background(), makeFleet(6))
	if err != nil {
		t.Fatalf("a thin fleet must still produce a plan: %v", err)
	}
	if !d.BelowQuota {
		t.Fatalf("six trains cannot meet a quota of thirteen")
	}
	if d.Summary.Service != 6 {
		t.Errorf("service = %d, want all 6", d.Summary.Service)
	}
}

func TestEngine_FallsBackToRank(t *testing.T) {
	e := newTestEngine(t, testConfig())
	e.exact = failingSolver{name: "exact"}
	e.heuristic = failingSolver{name: "evolutionary"}

	d, err := e.RunCycle(context.Background(), makeFleet(15))
	if err != nil {
		t.Fatalf("fallback chain must absorb solver failures: %v", err)
	}
	if d.SolverUsed != "rank" {
		t.Fatalf("solver used = %s, want rank", d.SolverUsed)
	}
	if d.SolverStatus != model.StatusFallback {
		t.Errorf("status = %s, want fallback", d.SolverStatus)
	}
	if d.Summary.Service != 13 {
		t.Errorf("service = %d, want default quota 13", d.Summary.Service)
	}
}

func TestEngine_PublishesSolverAndCycleEvents(t *testing.T) {
	ResetMetrics(nil)
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()

	e, err := NewEngine(testConfig(), nopLogger{}, nil, bus)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetClock(func() time.Time { return testNow })
	e.exact = failingSolver{name: "exact"}

	if _, err := e.RunCycle(context.Background(), makeFleet(15)); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	want := []string{"exact_attempt", "exact_failure", "evolutionary_fallback", "cycle"}
	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < len(want) {
		select {
		case ev := <-sub:
			switch v := ev.(type) {
			case events.SolverEvent:
				seen[v.Action] = true
			case events.CycleEvent:
				seen["cycle"] = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}
	for _, name := range want {
		if !seen[name] {
			t.Errorf("event %s not published, saw %v", name, seen)
		}
	}
}

// recordingSink captures solver attempt events for inspection.
type recordingSink struct {
	solvers []coremetrics.SolverEvent
}

func (s *recordingSink) RecordSchedule([]coremetrics.ScheduleRecord) error { return nil }
func (s *recordingSink) RecordSolver(ev coremetrics.SolverEvent) error {
	s.solvers = append(s.solvers, ev)
	return nil
}

func TestEngine_RecordsSolverAttemptsInSink(t *testing.T) {
	ResetMetrics(nil)
	sink := &recordingSink{}
	e, err := NewEngine(testConfig(), nopLogger{}, sink, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetClock(func() time.Time { return testNow })
	e.exact = failingSolver{name: "exact"}

	if _, err := e.RunCycle(context.Background(), makeFleet(15)); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	outcomes := map[string]string{}
	for _, ev := range sink.solvers {
		outcomes[ev.Solver] = ev.Outcome
		if ev.Time.IsZero() {
			t.Errorf("solver event for %s carries no timestamp", ev.Solver)
		}
	}
	if outcomes["exact"] != "failure" {
		t.Errorf("exact outcome = %q, want failure", outcomes["exact"])
	}
	if outcomes["evolutionary"] != "ok" {
		t.Errorf("evolutionary outcome = %q, want ok", outcomes["evolutionary"])
	}
}

func TestEngine_LatestIsIsolatedCopy(t *testing.T) {
	e := newTestEngine(t, testConfig())
	if e.Latest() != nil {
		t.Fatalf("Latest must be nil before the first cycle")
	}
	if _, err := e.RunCycle(context.Background(), makeFleet(14)); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	a := e.Latest()
	a.Trains[0].Status = model.StatusMaintenance
	a.Trains[0].Rationale = append(a.Trains[0].Rationale, "tampered")

	b := e.Latest()
	if b.Trains[0].Status == model.StatusMaintenance {
		t.Fatalf("mutation through Latest leaked into the stored decision")
	}
}

func TestEngine_RunCycleWithConfigIsSideEffectFree(t *testing.T) {
	e := newTestEngine(t, testConfig())
	fleet := makeFleet(14)
	if _, err := e.RunCycle(context.Background(), fleet); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	before := e.Latest()

	alt := testConfig()
	alt.ServiceQuota = 5
	d, err := e.RunCycleWithConfig(context.Background(), fleet, alt)
	if err != nil {
		t.Fatalf("what-if cycle failed: %v", err)
	}
	if d.Summary.Service != 5 {
		t.Errorf("what-if service = %d, want 5", d.Summary.Service)
	}

	after := e.Latest()
	if after.GeneratedAt != before.GeneratedAt || after.Summary != before.Summary {
		t.Fatalf("what-if run disturbed the stored decision")
	}
}

func TestEngine_BackupPriorities(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceQuota = 4
	e := newTestEngine(t, cfg)

	fleet := makeFleet(10)
	fleet[9].CriticalJobCard = true
	fleet[8].CleaningRequired = true

	d, err := e.RunCycle(context.Background(), fleet)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	var standby, cleaning, service, maint *model.TrainRecord
	for i := range d.Trains {
		tr := &d.Trains[i]
		switch tr.Status {
		case model.StatusStandby:
			if standby == nil {
				standby = tr
			}
		case model.StatusCleaning:
			cleaning = tr
		case model.StatusService:
			if service == nil {
				service = tr
			}
		case model.StatusMaintenance:
			maint = tr
		}
	}
	if maint == nil || maint.BackupPriority != 0 {
		t.Fatalf("maintenance train must have zero backup priority, got %+v", maint)
	}
	if standby == nil || cleaning == nil || service == nil {
		t.Fatalf("fixture did not produce all statuses: %+v", d.Summary)
	}
	if !(standby.BackupPriority > cleaning.BackupPriority && cleaning.BackupPriority > service.BackupPriority) {
		t.Fatalf("band ordering violated: standby=%v cleaning=%v service=%v",
			standby.BackupPriority, cleaning.BackupPriority, service.BackupPriority)
	}
}

func TestEngine_RecordsAssignmentsInStore(t *testing.T) {
	e := newTestEngine(t, testConfig())
	store := fleetstatus.NewMemoryStore()
	e.SetStatusStore(store)

	if _, err := e.RunCycle(context.Background(), makeFleet(14)); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	statuses := store.List(fleetstatus.Filter{})
	if len(statuses) != 14 {
		t.Fatalf("store holds %d assignments, want 14", len(statuses))
	}
	for _, st := range statuses {
		if st.LastAssignment.Solver == "" || st.LastAssignment.Timestamp.IsZero() {
			t.Errorf("incomplete assignment recorded: %+v", st)
		}
	}
}
