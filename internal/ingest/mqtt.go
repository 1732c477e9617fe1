package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 5 * time.Second

// MQTTSource subscribes to a topic carrying JSON line records.
type MQTTSource struct {
	client paho.Client
	topic  string
	hints  AcquisitionHints
}

// NewMQTTClient builds a paho client for broker with clean sessions and
// automatic reconnects.
func NewMQTTClient(broker, clientID string) paho.Client {
	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetProtocolVersion(4)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logf("mqtt connection lost: %v", err)
	})
	return paho.NewClient(opts)
}

// NewMQTTSource reads records published on topic. Wildcards are allowed.
func NewMQTTSource(client paho.Client, topic string, hints AcquisitionHints) *MQTTSource {
	return &MQTTSource{client: client, topic: topic, hints: hints}
}

// HintsTopic is where acquisition hints are published, retained, so that
// bridges connecting later pick them up.
func (s *MQTTSource) HintsTopic() string {
	base := s.topic
	if i := strings.IndexAny(base, "+#"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, "/") + "/hints"
}

// Run connects if needed, publishes the hints, and forwards messages
// until ctx is cancelled.
func (s *MQTTSource) Run(ctx context.Context, sink Sink) error {
	if !s.client.IsConnected() {
		if err := wait(s.client.Connect()); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	}
	defer s.client.Disconnect(250)

	if err := wait(s.client.Publish(s.HintsTopic(), 1, true, s.hints.Payload())); err != nil {
		logf("mqtt publish hints: %v", err)
	}

	handler := func(_ paho.Client, msg paho.Message) {
		deliver(sink, msg.Payload())
	}
	if err := wait(s.client.Subscribe(s.topic, 1, handler)); err != nil {
		return fmt.Errorf("mqtt subscribe %q: %w", s.topic, err)
	}
	defer wait(s.client.Unsubscribe(s.topic))

	<-ctx.Done()
	return ctx.Err()
}

func wait(t paho.Token) error {
	if !t.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("timed out after %v", mqttTimeout)
	}
	return t.Error()
}
