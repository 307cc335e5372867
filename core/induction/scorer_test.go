package induction

import (
	"math"
	"testing"
	"time"

	"github.com/kmetro/induction/core/model"
)

func TestScorer_ExpiredCertificateRaisesWithdrawalRisk(t *testing.T) {
	fresh := healthyTrain("KM-01")
	stale := healthyTrain("KM-02")
	stale.TelecomCert.ExpiresAt = testNow.Add(-time.Hour) // flagged valid, lapsed

	scores := NewScorer(testConfig(), testNow).ScoreFleet([]model.TrainRecord{fresh, stale})
	if scores["KM-02"] >= scores["KM-01"] {
		t.Fatalf("lapsed certificate must lower the score: fresh=%v stale=%v",
			scores["KM-01"], scores["KM-02"])
	}
}

func TestScorer_Deterministic(t *testing.T) {
	fleet := []model.TrainRecord{
		healthyTrain("KM-01"), healthyTrain("KM-02"), healthyTrain("KM-03"),
	}
	fleet[0].ReadinessProb = 0.95
	fleet[1].ReadinessProb = 0.70
	fleet[1].PredictedDelayMin = 4
	fleet[2].TotalMileageKM = 80000

	s := NewScorer(testConfig(), testNow)
	a := s.ScoreFleet(model.CloneFleet(fleet))
	b := s.ScoreFleet(model.CloneFleet(fleet))
	for id, sc := range a {
		if b[id] != sc {
			t.Fatalf("score for %s changed between runs: %v vs %v", id, sc, b[id])
		}
	}
}

func TestScorer_Bounds(t *testing.T) {
	fleet := []model.TrainRecord{
		healthyTrain("KM-01"), healthyTrain("KM-02"),
	}
	fleet[0].ReadinessProb = 5 // garbage input stays clamped
	fleet[1].ReadinessProb = -1
	fleet[1].PredictedDelayMin = 99

	for id, sc := range NewScorer(testConfig(), testNow).ScoreFleet(fleet) {
		if sc < 0 || sc > 100 {
			t.Errorf("score for %s = %v, want within [0,100]", id, sc)
		}
	}
}

func TestScorer_ReadinessPreferred(t *testing.T) {
	fleet := []model.TrainRecord{healthyTrain("KM-01"), healthyTrain("KM-02")}
	fleet[0].ReadinessProb = 0.95
	fleet[1].ReadinessProb = 0.55

	scores := NewScorer(testConfig(), testNow).ScoreFleet(fleet)
	if scores["KM-01"] <= scores["KM-02"] {
		t.Fatalf("higher readiness should score higher: %v", scores)
	}
}

func TestScorer_BrandingShortfallScoresHigher(t *testing.T) {
	fleet := []model.TrainRecord{healthyTrain("KM-01"), healthyTrain("KM-02")}
	fleet[0].BrandingActive = true
	fleet[0].ExposureTargetH = 100
	fleet[0].ExposureAccruedH = 20

	scores := NewScorer(testConfig(), testNow).ScoreFleet(fleet)
	if scores["KM-01"] <= scores["KM-02"] {
		t.Fatalf("train owing exposure hours should rank above one with no campaign: %v", scores)
	}
}

func TestScorer_MileageDeviationPenalized(t *testing.T) {
	fleet := []model.TrainRecord{
		healthyTrain("KM-01"), healthyTrain("KM-02"), healthyTrain("KM-03"),
	}
	fleet[0].TotalMileageKM = 50000
	fleet[1].TotalMileageKM = 50000
	fleet[2].TotalMileageKM = 120000

	scores := NewScorer(testConfig(), testNow).ScoreFleet(fleet)
	if scores["KM-03"] >= scores["KM-01"] {
		t.Fatalf("outlier mileage should score lower: %v", scores)
	}
}

func TestScorer_ShuntingCostPenalized(t *testing.T) {
	fleet := []model.TrainRecord{healthyTrain("KM-01"), healthyTrain("KM-02")}
	fleet[1].ShuntingMoves = 5
	fleet[1].BayPosition = 12

	scores := NewScorer(testConfig(), testNow).ScoreFleet(fleet)
	if scores["KM-02"] >= scores["KM-01"] {
		t.Fatalf("buried train should score lower: %v", scores)
	}
}

// A flat snapshot has no spread to normalize over; every relative
// sub-objective contributes zero preference and identical trains tie.
func TestScorer_FlatSnapshotTies(t *testing.T) {
	fleet := []model.TrainRecord{healthyTrain("KM-01"), healthyTrain("KM-02")}
	scores := NewScorer(testConfig(), testNow).ScoreFleet(fleet)
	if scores["KM-01"] != scores["KM-02"] {
		t.Fatalf("identical trains must tie, got %v", scores)
	}
}

func TestScorer_AnnotatesRecords(t *testing.T) {
	fleet := []model.TrainRecord{healthyTrain("KM-01")}
	scores := NewScorer(testConfig(), testNow).ScoreFleet(fleet)
	if fleet[0].Score != scores["KM-01"] {
		t.Fatalf("record score %v not synced with returned %v", fleet[0].Score, scores["KM-01"])
	}
}

func TestScorer_EmptyFleet(t *testing.T) {
	scores := NewScorer(testConfig(), testNow).ScoreFleet(nil)
	if len(scores) != 0 {
		t.Fatalf("expected empty map, got %v", scores)
	}
}

func TestScorer_RoundedToTwoDecimals(t *testing.T) {
	fleet := []model.TrainRecord{healthyTrain("KM-01"), healthyTrain("KM-02")}
	fleet[0].ReadinessProb = 0.123456
	for _, sc := range NewScorer(testConfig(), testNow).ScoreFleet(fleet) {
		if math.Round(sc*100)/100 != sc {
			t.Errorf("score %v carries more than two decimals", sc)
		}
	}
}
