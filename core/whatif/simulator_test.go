package whatif

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kmetro/induction/core/induction"
	"github.com/kmetro/induction/core/model"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

var simNow = time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

func simFleet(n int) []model.TrainRecord {
	cert := model.FitnessCertificate{Valid: true, ExpiresAt: simNow.Add(30 * 24 * time.Hour)}
	fleet := make([]model.TrainRecord, n)
	for i := range fleet {
		fleet[i] = model.TrainRecord{
			ID:                fmt.Sprintf("KM-%02d", i+1),
			Depot:             "muttom",
			RollingStockCert:  cert,
			SignallingCert:    cert,
			TelecomCert:       cert,
			BrakeWearPct:      30,
			HVACWearPct:       25,
			BatteryHealthPct:  95,
			TotalMileageKM:    50000,
			ReadinessProb:     0.95 - float64(i)*0.02,
			PredictedDelayMin: float64(i),
		}
	}
	return fleet
}

func simConfig() model.ConstraintConfig {
	var cfg model.ConstraintConfig
	cfg.SetDefaults()
	return cfg
}

func newSimulator(t *testing.T) *Simulator {
	t.Helper()
	induction.ResetMetrics(nil)
	e, err := induction.NewEngine(simConfig(), nopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetClock(func() time.Time { return simNow })
	return New(e, nopLogger{})
}

func TestSimulate_EmptyFleet(t *testing.T) {
	s := newSimulator(t)
	_, err := s.Simulate(context.Background(), nil, simConfig(), model.Perturbation{Kind: model.PerturbTrainFailure})
	if !errors.Is(err, model.ErrEmptyFleet) {
		t.Fatalf("expected ErrEmptyFleet, got %v", err)
	}
}

func TestSimulate_UnknownScenario(t *testing.T) {
	s := newSimulator(t)
	_, err := s.Simulate(context.Background(), simFleet(5), simConfig(), model.Perturbation{Kind: "meteor"})
	if err == nil {
		t.Fatalf("unknown perturbation must be rejected")
	}
}

func TestSimulate_InputUntouched(t *testing.T) {
	s := newSimulator(t)
	fleet := simFleet(16)
	cfg := simConfig()
	p := model.Perturbation{Kind: model.PerturbTrainFailure, AffectedTrains: []string{"KM-01", "KM-02"}}

	if _, err := s.Simulate(context.Background(), fleet, cfg, p); err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	for _, tr := range fleet {
		if !tr.RollingStockCert.Valid || tr.Status != model.StatusStandby || tr.Score != 0 {
			t.Fatalf("input snapshot mutated: %+v", tr)
		}
	}
	if cfg.ServiceQuota != 13 {
		t.Fatalf("input config mutated: quota = %d", cfg.ServiceQuota)
	}
}

func TestSimulate_TrainFailure(t *testing.T) {
	s := newSimulator(t)
	fleet := simFleet(16)
	p := model.Perturbation{Kind: model.PerturbTrainFailure, AffectedTrains: []string{"KM-01"}}

	r, err := s.Simulate(context.Background(), fleet, simConfig(), p)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	var km01 *StatusChange
	for i := range r.Changes {
		if r.Changes[i].TrainID == "KM-01" {
			km01 = &r.Changes[i]
		}
	}
	if km01 == nil || km01.To != model.StatusMaintenance {
		t.Fatalf("failed train should move to maintenance, changes: %+v", r.Changes)
	}
	if r.Before.Service != 13 || r.After.Service != 13 {
		t.Errorf("sixteen trains should still cover the quota: before=%d after=%d",
			r.Before.Service, r.After.Service)
	}
}

func TestSimulate_PeakDemandRaisesQuota(t *testing.T) {
	s := newSimulator(t)
	fleet := simFleet(20)
	p := model.Perturbation{Kind: model.PerturbPeakDemand, Magnitude: 1.3}

	r, err := s.Simulate(context.Background(), fleet, simConfig(), p)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	// ceil(13 * 1.3) = 17
	if r.After.Service != 17 {
		t.Fatalf("after.Service = %d, want 17", r.After.Service)
	}
}

func TestSimulate_EmergencyFailsLowestReadiness(t *testing.T) {
	s := newSimulator(t)
	fleet := simFleet(20)
	p := model.Perturbation{Kind: model.PerturbEmergency, Magnitude: 0.1}

	r, err := s.Simulate(context.Background(), fleet, simConfig(), p)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	// floor(20 * 0.1) = 2 trains fail; the lowest readiness are the
	// highest-numbered IDs in this fixture.
	failed := map[string]bool{}
	for _, c := range r.Changes {
		if c.To == model.StatusMaintenance {
			failed[c.TrainID] = true
		}
	}
	if !failed["KM-19"] || !failed["KM-20"] {
		t.Fatalf("expected the least ready trains pulled, changes: %+v", r.Changes)
	}
}

func TestSimulate_QuotaShortfallRecommendation(t *testing.T) {
	s := newSimulator(t)
	fleet := simFleet(14)
	p := model.Perturbation{
		Kind:           model.PerturbTrainFailure,
		AffectedTrains: []string{"KM-01", "KM-02", "KM-03"},
		Duration:       4 * time.Hour,
	}

	r, err := s.Simulate(context.Background(), fleet, simConfig(), p)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if r.After.Service != 11 {
		t.Fatalf("after.Service = %d, want 11", r.After.Service)
	}
	if r.Impact.AffectedPassengers == 0 || r.Impact.RevenueDelta >= 0 {
		t.Errorf("service loss must carry impact, got %+v", r.Impact)
	}
	// gap 2, 4h horizon: revenue -2*4*2500, recovery (4+1)*60.
	if r.Impact.RevenueDelta != -20000 {
		t.Errorf("revenue delta = %v, want -20000", r.Impact.RevenueDelta)
	}
	if r.Impact.RecoveryTimeMinutes != 300 {
		t.Errorf("recovery = %v, want 300", r.Impact.RecoveryTimeMinutes)
	}
	found := false
	for _, rec := range r.Recommendations {
		if strings.Contains(rec, "falls 2 short") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing shortfall recommendation: %v", r.Recommendations)
	}
}

func TestSimulate_AbsorbedScenario(t *testing.T) {
	s := newSimulator(t)
	fleet := simFleet(20)
	p := model.Perturbation{Kind: model.PerturbWeatherDelay, Magnitude: 1}

	r, err := s.Simulate(context.Background(), fleet, simConfig(), p)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if r.After.Service != 13 {
		t.Fatalf("after.Service = %d, want 13", r.After.Service)
	}
	if len(r.Recommendations) != 1 || !strings.Contains(r.Recommendations[0], "absorbs") {
		t.Errorf("expected the absorbed-scenario recommendation, got %v", r.Recommendations)
	}
}
