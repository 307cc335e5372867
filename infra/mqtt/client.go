package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kmetro/induction/core/mqtt"
	"github.com/kmetro/induction/core/model"
	"github.com/kmetro/induction/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker          string      `json:"broker" yaml:"broker"`
	ClientID        string      `json:"client_id" yaml:"client_id"`
	Username        string      `json:"username" yaml:"username"`
	Password        string      `json:"password" yaml:"password"`
	DisruptionTopic string      `json:"disruption_topic" yaml:"disruption_topic"`
	DeploymentTopic string      `json:"deployment_topic" yaml:"deployment_topic"`
	UseTLS          bool        `json:"use_tls" yaml:"use_tls"`
	ClientCert      string      `json:"client_cert" yaml:"client_cert"`
	ClientKey       string      `json:"client_key" yaml:"client_key"`
	CABundle        string      `json:"ca_bundle" yaml:"ca_bundle"`
	AuthMethod      string      `json:"auth_method" yaml:"auth_method"`
	QoS             byte        `json:"qos" yaml:"qos"`
	MaxRetries      int         `json:"max_retries" yaml:"max_retries"`
	BackoffMS       int         `json:"backoff_ms" yaml:"backoff_ms"`
	TLSConfig       *tls.Config `json:"-" yaml:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements the core mqtt.Client using Eclipse Paho.
type PahoClient struct {
	cli        pahoClient
	topic      string
	deployTop  string
	qos        byte
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger

	mu     sync.Mutex
	events chan model.DisruptionEvent
	closed bool
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the
// disruption topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		topic:      cfg.DisruptionTopic,
		deployTop:  cfg.DeploymentTopic,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
		events:     make(chan model.DisruptionEvent, 16),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(pc.topic, pc.qos, pc.onDisruption); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// disruptionWire is the JSON payload published by the control centre.
type disruptionWire struct {
	Kind               string  `json:"kind"`
	Severity           string  `json:"severity"`
	AffectedTrainID    string  `json:"affected_train_id"`
	AffectedPercentage float64 `json:"affected_percentage"`
	OccurredAt         int64   `json:"occurred_at"`
}

func (p *PahoClient) onDisruption(_ paho.Client, msg paho.Message) {
	var w disruptionWire
	if err := json.Unmarshal(msg.Payload(), &w); err != nil {
		p.logger.Errorf("failed to decode disruption: %v", err)
		return
	}
	kind, err := model.ParseDisruptionKind(w.Kind)
	if err != nil {
		p.logger.Errorf("drop disruption: %v", err)
		return
	}
	sev, err := model.ParseSeverity(w.Severity)
	if err != nil {
		p.logger.Errorf("drop disruption: %v", err)
		return
	}
	ev := model.DisruptionEvent{
		Kind:               kind,
		Severity:           sev,
		AffectedTrainID:    w.AffectedTrainID,
		AffectedPercentage: w.AffectedPercentage,
		OccurredAt:         time.UnixMilli(w.OccurredAt),
	}
	if w.OccurredAt == 0 {
		ev.OccurredAt = time.Now()
	}
	p.mu.Lock()
	if !p.closed {
		select {
		case p.events <- ev:
		default:
			p.logger.Warnf("disruption channel full, dropping %s event", w.Kind)
		}
	}
	p.mu.Unlock()
}

// Disruptions returns the decoded disruption event channel.
func (p *PahoClient) Disruptions() <-chan model.DisruptionEvent {
	return p.events
}

// PublishDeployment sends the deployment record to the control centre topic
// with bounded retries.
func (p *PahoClient) PublishDeployment(rec model.DeploymentRecord) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	retries := p.maxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := p.backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= retries; attempt++ {
		token := p.cli.Publish(p.deployTop, p.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("published deployment %s", rec.EmergencyID)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection and the event channel.
func (p *PahoClient) Disconnect() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
