package induction

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kmetro/induction/core/model"
)

// Scorer computes the multi-objective utility score per train. It is pure
// and deterministic for a given snapshot, weight vector and evaluation
// instant; schedule runs must be reproducible.
type Scorer struct {
	Weights model.ObjectiveWeights
	Now     time.Time
}

// NewScorer returns a scorer using the config's normalized weights,
// evaluating certificate validity at the given instant.
func NewScorer(cfg model.ConstraintConfig, now time.Time) Scorer {
	return Scorer{Weights: cfg.NormalizedWeights(), Now: now}
}

// fleetStats caches the min-max bounds used for snapshot-wide normalization.
type fleetStats struct {
	meanMileage        float64
	minDev, maxDev     float64
	minDelay, maxDelay float64
	minShort, maxShort float64
	minShunt, maxShunt float64
}

func collectStats(fleet []model.TrainRecord) fleetStats {
	mileages := make([]float64, len(fleet))
	for i, t := range fleet {
		mileages[i] = t.TotalMileageKM
	}
	s := fleetStats{meanMileage: stat.Mean(mileages, nil)}
	s.minDev, s.maxDev = math.Inf(1), math.Inf(-1)
	s.minDelay, s.maxDelay = math.Inf(1), math.Inf(-1)
	s.minShort, s.maxShort = math.Inf(1), math.Inf(-1)
	s.minShunt, s.maxShunt = math.Inf(1), math.Inf(-1)
	for _, t := range fleet {
		dev := math.Abs(t.TotalMileageKM - s.meanMileage)
		s.minDev = math.Min(s.minDev, dev)
		s.maxDev = math.Max(s.maxDev, dev)
		s.minDelay = math.Min(s.minDelay, t.PredictedDelayMin)
		s.maxDelay = math.Max(s.maxDelay, t.PredictedDelayMin)
		short := t.BrandingShortfallH()
		s.minShort = math.Min(s.minShort, short)
		s.maxShort = math.Max(s.maxShort, short)
		shunt := shuntingCost(t)
		s.minShunt = math.Min(s.minShunt, shunt)
		s.maxShunt = math.Max(s.maxShunt, shunt)
	}
	return s
}

// minMax normalizes v into [0,1]. A flat snapshot maps to 0 so that equal
// values express no preference and never divide by zero.
func minMax(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	n := (v - lo) / (hi - lo)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// shuntingCost estimates the positioning effort to bring a train out:
// required moves dominate, bay position adds a smaller term.
func shuntingCost(t model.TrainRecord) float64 {
	return float64(t.ShuntingMoves) + float64(t.BayPosition)*0.1
}

// fitnessSubScore is the fraction of currently valid certificates, used to
// shade the withdrawal risk; a train with lapsed certificates is a
// withdrawal waiting to happen regardless of its predicted delay.
func fitnessSubScore(t model.TrainRecord, now time.Time) float64 {
	n := 0.0
	for _, c := range []model.FitnessCertificate{t.RollingStockCert, t.SignallingCert, t.TelecomCert} {
		if c.CurrentlyValid(now) {
			n++
		}
	}
	return n / 3
}

// Score computes the utility score in [0,100] for one train against the
// snapshot statistics.
func (s Scorer) score(t model.TrainRecord, st fleetStats) float64 {
	w := s.Weights

	readiness := clamp01(t.ReadinessProb)

	delayRisk := minMax(t.PredictedDelayMin, st.minDelay, st.maxDelay)
	withdrawal := 0.7*delayRisk + 0.3*(1-fitnessSubScore(t, s.Now))
	punctuality := 1 - clamp01(withdrawal)

	dev := math.Abs(t.TotalMileageKM - st.meanMileage)
	mileage := 1 - minMax(dev, st.minDev, st.maxDev)

	// Trains still owing exposure hours score higher so campaigns complete.
	branding := minMax(t.BrandingShortfallH(), st.minShort, st.maxShort)

	efficiency := 1 - minMax(shuntingCost(t), st.minShunt, st.maxShunt)

	score := w.Readiness*readiness + w.Punctuality*punctuality +
		w.Mileage*mileage + w.Branding*branding + w.Efficiency*efficiency
	return math.Round(score*100*100) / 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoreFleet scores every train in the snapshot, annotates the records and
// returns the scores keyed by train ID.
func (s Scorer) ScoreFleet(fleet []model.TrainRecord) map[string]float64 {
	if len(fleet) == 0 {
		return map[string]float64{}
	}
	st := collectStats(fleet)
	scores := make(map[string]float64, len(fleet))
	for i := range fleet {
		sc := s.score(fleet[i], st)
		fleet[i].Score = sc
		scores[fleet[i].ID] = sc
	}
	return scores
}
