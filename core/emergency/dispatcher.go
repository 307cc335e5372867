// Package emergency deploys backup trains in response to live disruptions.
// It draws from the backup queue published by the induction engine and never
// reruns the optimizer on the hot path.
package emergency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmetro/induction/core/backup"
	"github.com/kmetro/induction/core/events"
	"github.com/kmetro/induction/core/fleetstatus"
	"github.com/kmetro/induction/core/logger"
	coremetrics "github.com/kmetro/induction/core/metrics"
	"github.com/kmetro/induction/core/model"
	"github.com/kmetro/induction/internal/eventbus"
)

// Config tunes backup selection per disruption scenario.
type Config struct {
	// ReadinessMin is the readiness floor for breakdown and delay events.
	ReadinessMin float64 `json:"readiness_min" yaml:"readiness_min"`
	// WeatherReadinessMin is the stricter floor applied during weather events.
	WeatherReadinessMin float64 `json:"weather_readiness_min" yaml:"weather_readiness_min"`
	// BatteryHealthMin filters candidates during power disruptions.
	BatteryHealthMin float64 `json:"battery_health_min" yaml:"battery_health_min"`
	// MaxDelayMin excludes trains predicted to run late during weather events.
	MaxDelayMin float64 `json:"max_delay_min" yaml:"max_delay_min"`
	// ClaimRetries bounds the attempts when concurrent responders race for
	// the same candidates.
	ClaimRetries int `json:"claim_retries" yaml:"claim_retries"`
	// AvgPassengersPerTrain feeds the impact estimate.
	AvgPassengersPerTrain int `json:"avg_passengers_per_train" yaml:"avg_passengers_per_train"`
	// FarePerPassenger feeds the revenue estimate.
	FarePerPassenger float64 `json:"fare_per_passenger" yaml:"fare_per_passenger"`
}

// SetDefaults fills unset fields with the standard response parameters.
func (c *Config) SetDefaults() {
	if c.ReadinessMin == 0 {
		c.ReadinessMin = 0.8
	}
	if c.WeatherReadinessMin == 0 {
		c.WeatherReadinessMin = 0.9
	}
	if c.BatteryHealthMin == 0 {
		c.BatteryHealthMin = 70
	}
	if c.MaxDelayMin == 0 {
		c.MaxDelayMin = 10
	}
	if c.ClaimRetries == 0 {
		c.ClaimRetries = 3
	}
	if c.AvgPassengersPerTrain == 0 {
		c.AvgPassengersPerTrain = 975
	}
	if c.FarePerPassenger == 0 {
		c.FarePerPassenger = 40
	}
}

var (
	// ErrNoBackup is returned when no deployable train satisfies the
	// scenario filter.
	ErrNoBackup = errors.New("no backup train available")
	// ErrContention is returned when every candidate was claimed by a
	// concurrent responder within the retry budget.
	ErrContention = errors.New("backup pool contention, retries exhausted")
)

// Dispatcher reacts to disruption events by deploying the best available
// backup train.
type Dispatcher struct {
	queue   *backup.Queue
	store   fleetstatus.Store
	logger  logger.Logger
	metrics coremetrics.MetricsSink
	bus     eventbus.EventBus
	cfg     Config
	now     func() time.Time

	mu     sync.Mutex
	active map[string]model.DeploymentRecord
}

// New builds a dispatcher over the given backup queue. A nil sink defaults
// to NopSink, a nil bus disables event publication.
func New(q *backup.Queue, store fleetstatus.Store, log logger.Logger, sink coremetrics.MetricsSink, bus eventbus.EventBus, cfg Config) *Dispatcher {
	cfg.SetDefaults()
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Dispatcher{
		queue:   q,
		store:   store,
		logger:  log,
		metrics: sink,
		bus:     bus,
		cfg:     cfg,
		now:     time.Now,
		active:  make(map[string]model.DeploymentRecord),
	}
}

// Respond selects, claims and deploys a backup train for the disruption.
// The affected train, if any, is out of scope here: pulling it from service
// is the responsibility of the next induction cycle.
func (d *Dispatcher) Respond(ctx context.Context, ev model.DisruptionEvent) (model.DeploymentRecord, error) {
	accept := d.filterFor(ev)

	var entry backup.Entry
	claimed := false
	for attempt := 0; attempt < d.cfg.ClaimRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.DeploymentRecord{}, err
		}
		e, ok := d.queue.PopMatch(accept)
		if !ok {
			d.publishResult(ev, "", "", ErrNoBackup)
			d.logger.Warnf("no backup for %s event affecting %s", ev.Kind, ev.AffectedTrainID)
			return model.DeploymentRecord{}, ErrNoBackup
		}
		if err := d.queue.Claim(e.TrainID); err != nil {
			continue
		}
		entry = e
		claimed = true
		break
	}
	if !claimed {
		d.publishResult(ev, "", "", ErrContention)
		return model.DeploymentRecord{}, ErrContention
	}

	now := d.now()
	rec := model.DeploymentRecord{
		EmergencyID:    uuid.New().String(),
		AffectedTrain:  ev.AffectedTrainID,
		SelectedBackup: entry.TrainID,
		Reason:         fmt.Sprintf("%s/%s: highest backup priority %.2f from %s", ev.Kind, ev.Severity, entry.Priority, entry.Status),
		Impact:         estimateImpact(ev, d.cfg),
		DeployedAt:     now,
	}

	d.mu.Lock()
	d.active[rec.EmergencyID] = rec
	d.mu.Unlock()

	if d.store != nil {
		d.store.RecordDeployment(entry.TrainID, fleetstatus.LastDeployment{
			EmergencyID: rec.EmergencyID,
			Kind:        ev.Kind.String(),
			Replaced:    ev.AffectedTrainID,
			Timestamp:   now,
		})
	}
	if rec2, ok := d.metrics.(coremetrics.DeploymentRecorder); ok {
		_ = rec2.RecordDeployment(coremetrics.DeploymentEvent{
			EmergencyID:   rec.EmergencyID,
			Kind:          ev.Kind,
			Severity:      ev.Severity,
			AffectedTrain: ev.AffectedTrainID,
			DeployedTrain: entry.TrainID,
			ResponseTime:  now.Sub(ev.OccurredAt),
			Time:          now,
		})
	}
	d.publishResult(ev, rec.EmergencyID, entry.TrainID, nil)
	d.logger.Infof("deployed %s for %s (%s/%s), emergency %s",
		entry.TrainID, ev.AffectedTrainID, ev.Kind, ev.Severity, rec.EmergencyID)
	return rec, nil
}

// Resolve closes an active emergency. The deployed train stays in service
// until the next cycle reassigns it.
func (d *Dispatcher) Resolve(emergencyID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.active[emergencyID]; !ok {
		return fmt.Errorf("unknown emergency %s", emergencyID)
	}
	delete(d.active, emergencyID)
	return nil
}

// Active returns the emergencies currently being responded to.
func (d *Dispatcher) Active() []model.DeploymentRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.DeploymentRecord, 0, len(d.active))
	for _, r := range d.active {
		out = append(out, r)
	}
	return out
}

// filterFor builds the per-scenario candidate predicate.
func (d *Dispatcher) filterFor(ev model.DisruptionEvent) func(backup.Entry) bool {
	switch ev.Kind {
	case model.DisruptionWeather:
		return func(e backup.Entry) bool {
			return e.Readiness >= d.cfg.WeatherReadinessMin && e.DelayMin <= d.cfg.MaxDelayMin
		}
	case model.DisruptionPower:
		return func(e backup.Entry) bool {
			return e.Battery >= d.cfg.BatteryHealthMin
		}
	default:
		return func(e backup.Entry) bool {
			return e.Readiness >= d.cfg.ReadinessMin
		}
	}
}

func (d *Dispatcher) publishResult(ev model.DisruptionEvent, id, selected string, err error) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.DeploymentEvent{
		EmergencyID:    id,
		Kind:           ev.Kind,
		AffectedTrain:  ev.AffectedTrainID,
		SelectedBackup: selected,
		Deployed:       err == nil,
		Err:            err,
	})
}

// Recovery baselines in minutes per disruption kind.
var recoveryBase = map[model.DisruptionKind]float64{
	model.DisruptionBreakdown: 45,
	model.DisruptionDelay:     20,
	model.DisruptionWeather:   60,
	model.DisruptionPower:     90,
}

func severityFactor(s model.Severity) float64 {
	switch s {
	case model.SeverityCritical:
		return 0.95
	case model.SeverityMajor:
		return 0.60
	case model.SeverityModerate:
		return 0.25
	default:
		return 0.10
	}
}

func severityMultiplier(s model.Severity) float64 {
	switch s {
	case model.SeverityCritical:
		return 3.0
	case model.SeverityMajor:
		return 2.0
	case model.SeverityModerate:
		return 1.5
	default:
		return 1.0
	}
}

// estimateImpact derives the operational impact of the disruption assuming
// the backup covers the affected run after the recovery window.
func estimateImpact(ev model.DisruptionEvent, cfg Config) model.ImpactEstimate {
	factor := severityFactor(ev.Severity)
	passengers := int(math.Round(float64(cfg.AvgPassengersPerTrain) * factor))
	recovery := recoveryBase[ev.Kind] * severityMultiplier(ev.Severity)
	return model.ImpactEstimate{
		AffectedPassengers:  passengers,
		RevenueDelta:        -float64(passengers) * cfg.FarePerPassenger,
		RecoveryTimeMinutes: recovery,
	}
}
