package mqtt

import "github.com/kmetro/induction/core/model"

// Client represents an MQTT client receiving disruption events from the
// operations control centre and publishing deployment notices back.
type Client interface {
	// Disruptions returns the channel of decoded disruption events. The
	// channel is closed on Disconnect.
	Disruptions() <-chan model.DisruptionEvent

	// PublishDeployment notifies the control centre of a backup deployment.
	PublishDeployment(rec model.DeploymentRecord) error

	// Disconnect gracefully closes the connection.
	Disconnect()
}
