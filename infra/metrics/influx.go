package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kmetro/induction/core/metrics"
	"github.com/kmetro/induction/infra/logger"
)

// InfluxSink writes induction events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSchedule writes the per-train assignments as line protocol events.
func (s *InfluxSink) RecordSchedule(recs []coremetrics.ScheduleRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("induction_assignment").
			AddTag("train_id", r.TrainID).
			AddTag("status", r.Status.String()).
			AddTag("solver", r.Solver).
			AddTag("depot", r.Depot).
			AddTag("component", "induction_engine").
			AddField("score", round3(r.Score)).
			AddField("backup_priority", round3(r.BackupPriority)).
			SetTime(r.GeneratedAt)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordCycle persists the summary of an induction cycle.
func (s *InfluxSink) RecordCycle(ev coremetrics.CycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("induction_cycle").
		AddTag("solver", ev.Solver).
		AddTag("status", ev.Status.String()).
		AddTag("below_quota", strconv.FormatBool(ev.BelowQuota)).
		AddTag("component", "induction_engine").
		AddField("service", ev.Summary.Service).
		AddField("standby", ev.Summary.Standby).
		AddField("maintenance", ev.Summary.Maintenance).
		AddField("cleaning", ev.Summary.Cleaning).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		SetTime(ev.GeneratedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSolver writes a solver attempt event.
func (s *InfluxSink) RecordSolver(ev coremetrics.SolverEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("solver_attempt").
		AddTag("solver", ev.Solver).
		AddTag("outcome", ev.Outcome).
		AddTag("component", "induction_engine").
		AddField("duration_ms", ev.Duration.Milliseconds()).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDeployment writes an emergency deployment event.
func (s *InfluxSink) RecordDeployment(ev coremetrics.DeploymentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("emergency_deployment").
		AddTag("emergency_id", ev.EmergencyID).
		AddTag("kind", ev.Kind.String()).
		AddTag("severity", ev.Severity.String()).
		AddTag("affected_train", ev.AffectedTrain).
		AddTag("deployed_train", ev.DeployedTrain).
		AddTag("component", "emergency_dispatcher").
		AddField("response_time_ms", ev.ResponseTime.Milliseconds()).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and closes the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
