// Package telemetry publishes daemon state changes over MQTT for home
// automation consumers.
package telemetry

import (
	"encoding/json"
	"log/slog"

	"github.com/mkarjala/duskd/internal/daemon"
	"github.com/mkarjala/duskd/pkg/mqtt"
)

// Publisher forwards state-change notifications to an MQTT broker. The full
// state goes to the retained state topic; the period additionally gets its
// own topic so simple consumers can subscribe to just that.
type Publisher struct {
	client mqtt.Client
	logger *slog.Logger
}

// NewPublisher returns a publisher using a connected MQTT client.
func NewPublisher(client mqtt.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// NotifyStateChanged implements daemon.Notifier.
func (p *Publisher) NotifyStateChanged(changed map[string]interface{}, full daemon.State) {
	if !p.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(full)
	if err != nil {
		p.logger.Error("Failed to encode state", "error", err)
		return
	}
	if err := p.client.Publish(mqtt.TopicState, 0, true, payload); err != nil {
		p.logger.Warn("Failed to publish state", "error", err)
	}

	if period, ok := changed["Period"]; ok {
		if name, ok := period.(string); ok {
			if err := p.client.Publish(mqtt.TopicPeriod, 0, true, []byte(name)); err != nil {
				p.logger.Warn("Failed to publish period", "error", err)
			}
		}
	}
}
