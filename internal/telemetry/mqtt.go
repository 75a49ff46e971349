// Package telemetry mirrors the rendered sentence stream onto an MQTT
// broker, entirely optional and entirely outside the tick loop's critical
// path: a publish failure here never holds up or fails a tick.
package telemetry

import (
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Mirror publishes every line handed to Publish onto one MQTT topic.
type Mirror struct {
	client mqtt.Client
	topic  string
}

// Dial connects to broker (e.g. "tcp://localhost:1883") with clientID and
// returns a Mirror publishing to topic. Connection happens synchronously so
// a misconfigured broker fails fast at startup rather than mid-run.
func Dial(broker, clientID, topic string) (*Mirror, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("telemetry: connected to MQTT broker at %s", broker)
	return &Mirror{client: client, topic: topic}, nil
}

// Publish sends line at QoS 0. Errors are logged, never returned — the
// engine's SetLineHook contract is fire-and-forget.
func (m *Mirror) Publish(line string) {
	token := m.client.Publish(m.topic, 0, false, line)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("telemetry: publish error: %v", token.Error())
		}
	}()
}

// Close disconnects from the broker, waiting up to 250ms for in-flight
// publishes to drain.
func (m *Mirror) Close() {
	m.client.Disconnect(250)
}
