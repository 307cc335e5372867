package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kmetro/induction/core/model"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `[
		{"id": "KM-01", "depot": "muttom", "readiness_prob": 0.92},
		{"id": "KM-02", "depot": "muttom", "cleaning_required": true}
	]`)
	fleet, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(fleet) != 2 {
		t.Fatalf("len = %d, want 2", len(fleet))
	}
	if fleet[0].ID != "KM-01" || fleet[0].ReadinessProb != 0.92 {
		t.Errorf("unexpected first record: %+v", fleet[0])
	}
	if !fleet[1].CleaningRequired {
		t.Errorf("cleaning flag not decoded: %+v", fleet[1])
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoad_EmptyFleet(t *testing.T) {
	path := writeFile(t, `[]`)
	if _, err := Load(path); !errors.Is(err, model.ErrEmptyFleet) {
		t.Fatalf("expected ErrEmptyFleet, got %v", err)
	}
}

func TestLoad_MissingID(t *testing.T) {
	path := writeFile(t, `[{"depot": "muttom"}]`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for train without id")
	}
}

func TestLoad_DuplicateID(t *testing.T) {
	path := writeFile(t, `[{"id": "KM-01"}, {"id": "KM-01"}]`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for duplicate id")
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := writeFile(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSaveThenLoadDecisionTrains(t *testing.T) {
	d := &model.ScheduleDecision{
		Trains: []model.TrainRecord{
			{ID: "KM-01", Status: model.StatusService, Score: 91.2},
			{ID: "KM-02", Status: model.StatusStandby, BackupPriority: 0.85},
		},
		Summary:    model.Summarize([]model.TrainRecord{{Status: model.StatusService}, {Status: model.StatusStandby}}),
		SolverUsed: "exact",
	}
	path := filepath.Join(t.TempDir(), "decision.json")
	if err := Save(path, d); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	for _, want := range []string{`"status": "service"`, `"status": "standby"`, `"solver_status": "optimal"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("decision file missing %s:\n%s", want, data)
		}
	}

	var back model.ScheduleDecision
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if back.Trains[0].Status != model.StatusService || back.SolverStatus != model.StatusOptimal {
		t.Errorf("statuses did not survive the round trip: %+v", back)
	}
}
