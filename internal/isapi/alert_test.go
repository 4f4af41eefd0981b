package isapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const alertV1 = `<?xml version="1.0" encoding="UTF-8"?>
<EventNotificationAlert version="1.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
<ipAddress>192.168.1.64</ipAddress>
<protocolType>HTTP</protocolType>
<macAddress>01:17:24:45:D9:F4</macAddress>
<channelID>1</channelID>
<dateTime>2024-03-10T12:00:15+01:00</dateTime>
<activePostCount>1</activePostCount>
<eventType>linedetection</eventType>
<eventState>active</eventState>
<eventDescription>linedetection alarm</eventDescription>
<DetectionRegionList>
<DetectionRegionEntry>
<regionID>2</regionID>
<detectionTarget>human</detectionTarget>
</DetectionRegionEntry>
</DetectionRegionList>
<Extensions>
<serialNumber>DS-7608NXI-I20</serialNumber>
</Extensions>
</EventNotificationAlert>`

const alertV2Duration = `<?xml version="1.0" encoding="UTF-8"?>
<EventNotificationAlert version="2.0">
<ipAddress>192.168.1.64</ipAddress>
<macAddress>01:17:24:45:D9:F4</macAddress>
<dynChannelID>2</dynChannelID>
<dateTime>2024-03-10T12:00:15Z</dateTime>
<eventType>duration</eventType>
<DurationList>
<Duration>
<relationEvent>VMD</relationEvent>
</Duration>
</DurationList>
</EventNotificationAlert>`

func TestParseAlert(t *testing.T) {
	alert, err := ParseAlert([]byte(alertV1))
	assert.NoError(t, err)
	assert.Equal(t, "linedetection", alert.EventID)
	assert.Equal(t, 1, alert.ChannelID)
	assert.Equal(t, 2, alert.RegionID)
	assert.Equal(t, "human", alert.DetectionTarget)
	assert.Equal(t, "DS-7608NXI-I20", alert.DeviceSerialNo)
	assert.Equal(t, "01:17:24:45:D9:F4", alert.MACAddress)
}

func TestParseAlertDurationRelation(t *testing.T) {
	alert, err := ParseAlert([]byte(alertV2Duration))
	assert.NoError(t, err)
	// vmd is an alternate id for motion detection
	assert.Equal(t, "motiondetection", alert.EventID)
	assert.Equal(t, 2, alert.ChannelID)
}

func TestParseAlertUnescapedAmpersand(t *testing.T) {
	xml := `<?xml version="1.0"?>
<EventNotificationAlert>
<channelID>1</channelID>
<eventType>motiondetection</eventType>
<eventDescription>Cam & Garden</eventDescription>
</EventNotificationAlert>`
	alert, err := ParseAlert([]byte(xml))
	assert.NoError(t, err)
	assert.Equal(t, "motiondetection", alert.EventID)
}

func TestParseAlertErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"garbage", "not xml at all"},
		{"truncated", "<EventNotificationAlert><channelID>1"},
		{"unsupported event", "<EventNotificationAlert><eventType>diskerror</eventType></EventNotificationAlert>"},
		{"no event type", "<EventNotificationAlert><channelID>1</channelID></EventNotificationAlert>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAlert([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestEscapeBareAmpersands(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a & b", "a &amp; b"},
		{"a &amp; b", "a &amp; b"},
		{"a &#38; b", "a &#38; b"},
		{"tail &", "tail &amp;"},
		{"&& twice", "&amp;&amp; twice"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, string(EscapeBareAmpersands([]byte(tt.input))), tt.input)
	}
}
