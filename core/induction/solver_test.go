package induction

import (
	"fmt"

	"github.com/kmetro/induction/core/model"
)

// makeProblem runs the filter and scorer over a snapshot the way the engine
// does, so solver tests exercise real verdicts and scores.
func makeProblem(fleet []model.TrainRecord, cfg model.ConstraintConfig) Problem {
	verdicts := EligibilityFilter{}.EvaluateFleet(fleet, cfg, testNow)
	scores := NewScorer(cfg, testNow).ScoreFleet(fleet)
	return Problem{Fleet: fleet, Verdicts: verdicts, Scores: scores, Config: cfg}
}

// makeFleet builds n healthy trains with spread-out readiness so scores
// rank strictly: KM-01 highest, KM-n lowest.
func makeFleet(n int) []model.TrainRecord {
	fleet := make([]model.TrainRecord, n)
	for i := range fleet {
		tr := healthyTrain(fmt.Sprintf("KM-%02d", i+1))
		tr.ReadinessProb = 0.95 - float64(i)*0.02
		tr.PredictedDelayMin = float64(i)
		fleet[i] = tr
	}
	return fleet
}

func serviceIDs(asn Assignment) []string {
	var out []string
	for id, st := range asn {
		if st == model.StatusService {
			out = append(out, id)
		}
	}
	return out
}
