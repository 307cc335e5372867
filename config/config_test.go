package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `constraints:
  service_quota: 15
  max_maintenance_slots: 6
  depot_capacity:
    muttom: 20
  weights:
    readiness: 0.4
    punctuality: 0.2
    mileage: 0.2
    branding: 0.1
    efficiency: 0.1
emergency:
  readiness_min: 0.75
  claim_retries: 5
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "induction"
  disruption_topic: "ops/disruption"
  deployment_topic: "ops/deployment"
metrics:
  prometheus_port: 9105
  influx:
    enabled: true
    url: "http://localhost:8086"
    org: "kmetro"
    bucket: "induction"
schedule:
  cron_spec: "30 1 * * *"
  snapshot_path: "fleet.json"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"service_quota", cfg.Constraints.ServiceQuota, 15},
		{"max_maintenance_slots", cfg.Constraints.MaxMaintenanceSlots, 6},
		{"max_cleaning_slots_default", cfg.Constraints.MaxCleaningSlots, 5},
		{"depot_capacity", cfg.Constraints.DepotCapacity["muttom"], 20},
		{"weights.readiness", cfg.Constraints.Weights.Readiness, 0.4},
		{"emergency.readiness_min", cfg.Emergency.ReadinessMin, 0.75},
		{"emergency.claim_retries", cfg.Emergency.ClaimRetries, 5},
		{"emergency.weather_default", cfg.Emergency.WeatherReadinessMin, 0.9},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"disruption_topic", cfg.MQTT.DisruptionTopic, "ops/disruption"},
		{"prometheus_port", cfg.Metrics.PrometheusPort, 9105},
		{"influx.enabled", cfg.Metrics.Influx.Enabled, true},
		{"cron_spec", cfg.Schedule.CronSpec, "30 1 * * *"},
		{"snapshot_path", cfg.Schedule.SnapshotPath, "fleet.json"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadRejectsBadCron(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `schedule:
  cron_spec: "not a cron"
  snapshot_path: "fleet.json"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected cron validation error")
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `constraints:
  service_quota: 13
schedule:
  snapshot_path: "fleet.json"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("IND_CONSTRAINTS__SERVICE_QUOTA", "17")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Constraints.ServiceQuota != 17 {
		t.Fatalf("env override ignored: %d", cfg.Constraints.ServiceQuota)
	}
}
