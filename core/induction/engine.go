package induction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kmetro/induction/core/events"
	"github.com/kmetro/induction/core/fleetstatus"
	"github.com/kmetro/induction/core/logger"
	coremetrics "github.com/kmetro/induction/core/metrics"
	"github.com/kmetro/induction/core/model"
	"github.com/kmetro/induction/internal/eventbus"
)

// Engine runs the nightly induction cycle: eligibility filtering, scoring,
// the solver ensemble and reconciliation, producing one ScheduleDecision.
type Engine struct {
	filter     EligibilityFilter
	reconciler Reconciler
	exact      Solver
	heuristic  Solver
	rank       Solver
	cfg        model.ConstraintConfig
	logger     logger.Logger
	metrics    coremetrics.MetricsSink
	bus        eventbus.EventBus
	now        func() time.Time

	mu          sync.Mutex
	last        *model.ScheduleDecision
	statusStore fleetstatus.Store
}

// SetStatusStore configures the store used to persist per-train assignments.
func (e *Engine) SetStatusStore(store fleetstatus.Store) {
	e.mu.Lock()
	e.statusStore = store
	e.mu.Unlock()
}

// SetClock overrides the time source used to stamp cycles and evaluate
// certificate validity. Simulations pin it to reason about a fixed instant.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// NewEngine builds an engine with the default solver ensemble. A nil sink
// defaults to NopSink and a nil bus disables event publication.
func NewEngine(cfg model.ConstraintConfig, log logger.Logger, sink coremetrics.MetricsSink, bus eventbus.EventBus) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Engine{
		filter:    EligibilityFilter{},
		exact:     ExactSolver{TimeLimit: cfg.SolverTimeLimit},
		heuristic: NewGeneticSolver(),
		rank:      RankSolver{},
		cfg:       cfg,
		logger:    log,
		metrics:   sink,
		bus:       bus,
		now:       time.Now,
	}, nil
}

// Latest returns the most recent decision, or nil before the first cycle.
func (e *Engine) Latest() *model.ScheduleDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	cp := e.last.Clone()
	return &cp
}

// RunCycle executes one induction cycle over the snapshot using the engine's
// configuration. The input slice is never mutated.
func (e *Engine) RunCycle(ctx context.Context, fleet []model.TrainRecord) (*model.ScheduleDecision, error) {
	return e.runCycle(ctx, fleet, e.cfg, true)
}

// RunCycleWithConfig runs a cycle under an alternative constraint set without
// touching the engine's configuration or its stored decision. The what-if
// simulator depends on this staying side effect free.
func (e *Engine) RunCycleWithConfig(ctx context.Context, fleet []model.TrainRecord, cfg model.ConstraintConfig) (*model.ScheduleDecision, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return e.runCycle(ctx, fleet, cfg, false)
}

func (e *Engine) runCycle(ctx context.Context, fleet []model.TrainRecord, cfg model.ConstraintConfig, store bool) (*model.ScheduleDecision, error) {
	if len(fleet) == 0 {
		return nil, model.ErrEmptyFleet
	}
	start := e.now()
	snapshot := model.CloneFleet(fleet)

	verdicts := e.filter.EvaluateFleet(snapshot, cfg, start)
	scores := NewScorer(cfg, start).ScoreFleet(snapshot)
	problem := Problem{Fleet: snapshot, Verdicts: verdicts, Scores: scores, Config: cfg}

	proposals, solverUsed, status := e.solve(ctx, problem)

	res := e.reconciler.Reconcile(problem, proposals)
	e.apply(snapshot, res)

	decision := &model.ScheduleDecision{
		Trains:       snapshot,
		Summary:      model.Summarize(snapshot),
		SolverUsed:   solverUsed,
		SolverStatus: status,
		BelowQuota:   res.BelowQuota,
		Excluded:     res.Excluded,
		GeneratedAt:  start,
	}

	e.observe(decision, e.now().Sub(start), cfg)
	if store {
		cp := decision.Clone()
		e.mu.Lock()
		e.last = &cp
		st := e.statusStore
		e.mu.Unlock()
		if st != nil {
			for _, t := range decision.Trains {
				st.RecordAssignment(t.ID, fleetstatus.LastAssignment{
					Status:         t.Status.String(),
					Score:          t.Score,
					BackupPriority: t.BackupPriority,
					Solver:         decision.SolverUsed,
					Rationale:      t.Rationale,
					Timestamp:      decision.GeneratedAt,
				})
			}
		}
	}
	return decision, nil
}

// solve runs the exact and evolutionary solvers concurrently and falls back
// to the deterministic ranking when both fail. At least one proposal is
// always returned.
func (e *Engine) solve(ctx context.Context, p Problem) ([]Proposal, string, model.SolverStatus) {
	type attempt struct {
		prop Proposal
		err  error
		dur  time.Duration
	}
	run := func(s Solver, out *attempt, wg *sync.WaitGroup) {
		defer wg.Done()
		t0 := time.Now()
		out.prop, out.err = s.Solve(ctx, p)
		out.dur = time.Since(t0)
		solveDuration.WithLabelValues(s.Name()).Observe(out.dur.Seconds())
	}

	e.publish(events.SolverEvent{Action: "exact_attempt"})
	var exact, evo attempt
	var wg sync.WaitGroup
	wg.Add(2)
	go run(e.exact, &exact, &wg)
	go run(e.heuristic, &evo, &wg)
	wg.Wait()

	var proposals []Proposal
	if exact.err == nil {
		proposals = append(proposals, exact.prop)
		e.recordSolver(e.exact.Name(), "ok", exact.dur)
	} else {
		action := "exact_failure"
		outcome := "failure"
		if exact.err == ErrSolverTimeout {
			action = "exact_timeout"
			outcome = "timeout"
		}
		solverFallbacks.WithLabelValues(action).Inc()
		e.recordSolver(e.exact.Name(), outcome, exact.dur)
		e.publish(events.SolverEvent{Action: action, Err: exact.err})
		e.logger.Warnf("exact solver failed after %s: %v", exact.dur, exact.err)
	}
	if evo.err == nil {
		proposals = append(proposals, evo.prop)
		e.recordSolver(e.heuristic.Name(), "ok", evo.dur)
	} else {
		e.recordSolver(e.heuristic.Name(), "failure", evo.dur)
		e.logger.Warnf("evolutionary solver failed after %s: %v", evo.dur, evo.err)
	}

	switch {
	case exact.err == nil:
		return proposals, e.exact.Name(), exact.prop.Status
	case evo.err == nil:
		solverFallbacks.WithLabelValues("evolutionary_fallback").Inc()
		e.publish(events.SolverEvent{Action: "evolutionary_fallback"})
		return proposals, e.heuristic.Name(), evo.prop.Status
	}

	solverFallbacks.WithLabelValues("rank_fallback").Inc()
	e.publish(events.SolverEvent{Action: "rank_fallback"})
	t0 := time.Now()
	prop, err := e.rank.Solve(ctx, p)
	e.recordSolver(e.rank.Name(), "fallback", time.Since(t0))
	if err != nil {
		// Rank only errors on an empty fleet, which runCycle rejects
		// upfront. Keep the chain total anyway.
		e.logger.Errorf("rank solver failed: %v", err)
		prop = Proposal{Assignment: Assignment{}, Status: model.StatusFallback, Solver: e.rank.Name()}
	}
	return []Proposal{prop}, e.rank.Name(), prop.Status
}

// apply writes the reconciled statuses, rationale and backup priorities back
// onto the snapshot records.
func (e *Engine) apply(snapshot []model.TrainRecord, res ReconcileResult) {
	var maxScore float64
	for i := range snapshot {
		if snapshot[i].Score > maxScore {
			maxScore = snapshot[i].Score
		}
	}
	for i := range snapshot {
		t := &snapshot[i]
		t.Status = res.Assignment[t.ID]
		if r := res.Rationale[t.ID]; len(r) > 0 {
			t.Rationale = append([]string(nil), r...)
		}
		t.BackupPriority = backupPriority(*t, maxScore)
	}
	sort.SliceStable(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
}

// backupPriority ranks deployable trains for emergency substitution.
// Standbys outrank cleaning-bay trains which outrank revenue trains; the
// utility score breaks ties within a band.
func backupPriority(t model.TrainRecord, maxScore float64) float64 {
	if !t.Status.Deployable() {
		return 0
	}
	var w float64
	switch t.Status {
	case model.StatusStandby:
		w = 1.0
	case model.StatusCleaning:
		w = 0.7
	case model.StatusService:
		w = 0.4
	}
	norm := 0.0
	if maxScore > 0 {
		norm = t.Score / maxScore
	}
	return 0.6*w + 0.4*norm
}

// recordSolver forwards one solver attempt to the sink when it implements
// the capability.
func (e *Engine) recordSolver(name, outcome string, dur time.Duration) {
	rec, ok := e.metrics.(coremetrics.SolverRecorder)
	if !ok {
		return
	}
	if err := rec.RecordSolver(coremetrics.SolverEvent{
		Solver:   name,
		Outcome:  outcome,
		Duration: dur,
		Time:     e.now(),
	}); err != nil {
		e.logger.Errorf("metrics sink: %v", err)
	}
}

func (e *Engine) observe(d *model.ScheduleDecision, dur time.Duration, cfg model.ConstraintConfig) {
	cyclesTotal.WithLabelValues(d.SolverUsed, d.SolverStatus.String()).Inc()
	fleetStatus.WithLabelValues("service").Set(float64(d.Summary.Service))
	fleetStatus.WithLabelValues("standby").Set(float64(d.Summary.Standby))
	fleetStatus.WithLabelValues("maintenance").Set(float64(d.Summary.Maintenance))
	fleetStatus.WithLabelValues("cleaning").Set(float64(d.Summary.Cleaning))
	serviceGap.Set(float64(cfg.ServiceQuota - d.Summary.Service))

	recs := make([]coremetrics.ScheduleRecord, 0, len(d.Trains))
	for _, t := range d.Trains {
		recs = append(recs, coremetrics.ScheduleRecord{
			TrainID:        t.ID,
			Status:         t.Status,
			Score:          t.Score,
			BackupPriority: t.BackupPriority,
			Solver:         d.SolverUsed,
			Depot:          t.Depot,
			GeneratedAt:    d.GeneratedAt,
		})
	}
	if err := e.metrics.RecordSchedule(recs); err != nil {
		e.logger.Errorf("metrics sink: %v", err)
	}
	if rec, ok := e.metrics.(coremetrics.CycleRecorder); ok {
		_ = rec.RecordCycle(coremetrics.CycleEvent{
			Summary:     d.Summary,
			Solver:      d.SolverUsed,
			Status:      d.SolverStatus,
			BelowQuota:  d.BelowQuota,
			Duration:    dur,
			GeneratedAt: d.GeneratedAt,
		})
	}
	e.publish(events.CycleEvent{
		Summary:     d.Summary,
		SolverUsed:  d.SolverUsed,
		Status:      d.SolverStatus,
		BelowQuota:  d.BelowQuota,
		GeneratedAt: d.GeneratedAt,
	})
	e.logger.Infof("cycle done: solver=%s status=%s service=%d/%d standby=%d maintenance=%d cleaning=%d",
		d.SolverUsed, d.SolverStatus, d.Summary.Service, cfg.ServiceQuota,
		d.Summary.Standby, d.Summary.Maintenance, d.Summary.Cleaning)
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
