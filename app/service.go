package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/kmetro/induction/config"
	"github.com/kmetro/induction/core/backup"
	"github.com/kmetro/induction/core/emergency"
	"github.com/kmetro/induction/core/fleetstatus"
	"github.com/kmetro/induction/core/induction"
	coremetrics "github.com/kmetro/induction/core/metrics"
	coremqtt "github.com/kmetro/induction/core/mqtt"
	"github.com/kmetro/induction/infra/logger"
	"github.com/kmetro/induction/infra/metrics"
	"github.com/kmetro/induction/infra/mqtt"
	"github.com/kmetro/induction/infra/snapshot"
	"github.com/kmetro/induction/internal/eventbus"
)

// Service orchestrates the induction engine, the backup pool and the
// emergency dispatcher.
type Service struct {
	Engine     *induction.Engine
	Queue      *backup.Queue
	Dispatcher *emergency.Dispatcher
	Status     *fleetstatus.MemoryStore

	cfg      *config.Config
	client   coremqtt.Client
	bus      eventbus.EventBus
	log      logger.Logger
	promPort int
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	promSink, err := metrics.NewPromSink()
	if err != nil {
		return nil, fmt.Errorf("prom sink: %w", err)
	}
	sinks = append(sinks, promSink)
	if cfg.Metrics.Influx.Enabled {
		in := cfg.Metrics.Influx
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(in.URL, in.Token, in.Org, in.Bucket))
	}
	sink := coremetrics.MetricsSink(metrics.NewMultiSink(sinks...))

	bus := eventbus.New()
	engine, err := induction.NewEngine(cfg.Constraints, logg, sink, bus)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	status := fleetstatus.NewMemoryStore()
	engine.SetStatusStore(status)

	queue := backup.New()
	dispatcher := emergency.New(queue, status, logg, sink, bus, cfg.Emergency)

	var client coremqtt.Client
	if cfg.MQTT.Broker != "" {
		client, err = mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}

	return &Service{
		Engine:     engine,
		Queue:      queue,
		Dispatcher: dispatcher,
		Status:     status,
		cfg:        cfg,
		client:     client,
		bus:        bus,
		log:        logg,
		promPort:   cfg.Metrics.PrometheusPort,
	}, nil
}

// RunCycleNow loads the configured snapshot, runs one induction cycle and
// republishes the backup pool.
func (s *Service) RunCycleNow(ctx context.Context) error {
	fleet, err := snapshot.Load(s.cfg.Schedule.SnapshotPath)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	decision, err := s.Engine.RunCycle(ctx, fleet)
	if err != nil {
		return fmt.Errorf("induction cycle: %w", err)
	}
	s.Queue.Rebuild(decision)
	if out := s.cfg.Schedule.OutputPath; out != "" {
		if err := snapshot.Save(out, decision); err != nil {
			s.log.Errorf("write decision: %v", err)
		}
	}
	return nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	sched := cron.New()
	if _, err := sched.AddFunc(s.cfg.Schedule.CronSpec, func() {
		if err := s.RunCycleNow(ctx); err != nil {
			s.log.Errorf("scheduled cycle: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if s.client != nil {
		go s.consumeDisruptions(ctx)
	}
	if s.promPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", s.promPort)
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	// Startup cycle so the backup pool exists before the first cron tick.
	if err := s.RunCycleNow(ctx); err != nil {
		s.log.Errorf("startup cycle: %v", err)
	}
	<-ctx.Done()
	return nil
}

func (s *Service) consumeDisruptions(ctx context.Context) {
	for {
		select {
		case ev, ok := <-s.client.Disruptions():
			if !ok {
				return
			}
			rec, err := s.Dispatcher.Respond(ctx, ev)
			if err != nil {
				s.log.Errorf("emergency response: %v", err)
				continue
			}
			if err := s.client.PublishDeployment(rec); err != nil {
				s.log.Errorf("publish deployment: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	return nil
}
