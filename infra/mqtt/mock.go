package mqtt

import (
	"sync"

	coremqtt "github.com/kmetro/induction/core/mqtt"
	"github.com/kmetro/induction/core/model"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockClient is a simple in-memory client used in tests.
type MockClient struct {
	events    chan model.DisruptionEvent
	mu        sync.Mutex
	Published []model.DeploymentRecord
	FailNext  bool
	closed    bool
}

// NewMockClient creates a MockClient with a buffered event channel.
func NewMockClient() *MockClient {
	return &MockClient{events: make(chan model.DisruptionEvent, 16)}
}

// Inject feeds a disruption event to subscribers.
func (m *MockClient) Inject(ev model.DisruptionEvent) {
	m.events <- ev
}

// Disruptions returns the event channel.
func (m *MockClient) Disruptions() <-chan model.DisruptionEvent {
	return m.events
}

// PublishDeployment records the deployment or fails once if configured.
func (m *MockClient) PublishDeployment(rec model.DeploymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext {
		m.FailNext = false
		return coremqtt.ErrNotConnected
	}
	m.Published = append(m.Published, rec)
	return nil
}

// Disconnect closes the event channel.
func (m *MockClient) Disconnect() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	m.mu.Unlock()
}
