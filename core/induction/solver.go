package induction

import (
	"context"
	"errors"

	"github.com/kmetro/induction/core/model"
)

// Assignment maps train IDs to a proposed status.
type Assignment map[string]model.TrainStatus

// ServiceCount returns the number of trains proposed for service.
func (a Assignment) ServiceCount() int {
	n := 0
	for _, s := range a {
		if s == model.StatusService {
			n++
		}
	}
	return n
}

// Proposal is one solver's output.
type Proposal struct {
	Assignment Assignment
	Status     model.SolverStatus
	BelowQuota bool
	Solver     string
}

// Problem bundles everything a solver needs for one cycle: the snapshot,
// eligibility verdicts, utility scores and the constraint set.
type Problem struct {
	Fleet    []model.TrainRecord
	Verdicts map[string]Verdict
	Scores   map[string]float64
	Config   model.ConstraintConfig
}

// Eligible returns the trains that may legally run in service.
func (p Problem) Eligible() []model.TrainRecord {
	var out []model.TrainRecord
	for _, t := range p.Fleet {
		if p.Verdicts[t.ID].Eligible {
			out = append(out, t)
		}
	}
	return out
}

// Solver turns a problem into a fleet-wide assignment proposal. The
// reconciler and the fallback chain depend only on this interface.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p Problem) (Proposal, error)
}

// Sentinel errors surfaced by the solvers and consumed by the fallback
// chain; a caught-and-ignored solver failure is never acceptable.
var (
	ErrInfeasible    = errors.New("service quota infeasible under hard constraints")
	ErrSolverTimeout = errors.New("solver wall-clock limit exceeded")
)
