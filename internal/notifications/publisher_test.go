package notifications

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
)

type fakeToken struct {
	mqtt.Token
	complete bool
	err      error
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTTClient struct {
	mqtt.Client
	connect *fakeToken
	topics  []string
}

func (c *fakeMQTTClient) Connect() mqtt.Token { return c.connect }

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topics = append(c.topics, topic)
	return &fakeToken{complete: true}
}

func TestDialMQTTConnected(t *testing.T) {
	ok, err := DialMQTT(&fakeMQTTClient{connect: &fakeToken{complete: true}}, time.Second)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestDialMQTTFailed(t *testing.T) {
	client := &fakeMQTTClient{connect: &fakeToken{complete: true, err: errors.New("bad credentials")}}
	ok, err := DialMQTT(client, time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}

// A broker that has not answered yet is pending, not failed; the caller
// keeps the publisher and the client retries in the background.
func TestDialMQTTPending(t *testing.T) {
	ok, err := DialMQTT(&fakeMQTTClient{connect: &fakeToken{}}, time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMQTTPublisherTopic(t *testing.T) {
	client := &fakeMQTTClient{}
	pub := NewMQTTPublisher(client, "hikbridge/events")

	err := pub.Publish(&BridgeEvent{
		DeviceSerialNo: "DS-TEST-1",
		ChannelID:      2,
		EventType:      "motiondetection",
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"hikbridge/events/DS-TEST-1/2/motiondetection"}, client.topics)
}
