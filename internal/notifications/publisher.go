package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
)

// Publisher pushes one normalized event to a downstream sink.
type Publisher interface {
	Publish(event *BridgeEvent) error
	Name() string
}

type NATSPublisher struct {
	conn       *nats.Conn
	subject    string
	maxRetries int
}

func NewNATSPublisher(conn *nats.Conn, subject string, maxRetries int) *NATSPublisher {
	return &NATSPublisher{
		conn:       conn,
		subject:    subject,
		maxRetries: maxRetries,
	}
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Publish(event *BridgeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s", p.subject, event.DeviceSerialNo, event.EventType)
	for i := 0; i <= p.maxRetries; i++ {
		err = p.conn.Publish(subject, data)
		if err == nil {
			return nil
		}

		// Backoff
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}

	return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, err)
}

// MQTTPublisher mirrors events onto an MQTT broker for home automation
// consumers. Optional; nil is a valid value everywhere a publisher list
// is assembled.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
	timeout     time.Duration
}

// DialMQTT connects the client and reports whether a session is up. A
// broker that has not answered within the timeout returns (false, nil):
// the client keeps retrying in the background, so the caller may still
// register the publisher, but must not claim a live connection.
func DialMQTT(client mqtt.Client, timeout time.Duration) (bool, error) {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return false, nil
	}
	if err := token.Error(); err != nil {
		return false, err
	}
	return true, nil
}

func NewMQTTPublisher(client mqtt.Client, topicPrefix string) *MQTTPublisher {
	return &MQTTPublisher{
		client:      client,
		topicPrefix: topicPrefix,
		timeout:     5 * time.Second,
	}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

func (p *MQTTPublisher) Publish(event *BridgeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/%d/%s", p.topicPrefix, event.DeviceSerialNo, event.ChannelID, event.EventType)
	token := p.client.Publish(topic, 0, false, data)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}
