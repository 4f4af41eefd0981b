package notifications

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BridgeEvent is the normalized envelope republished for every accepted
// device notification.
type BridgeEvent struct {
	EventID        uuid.UUID `json:"event_id"`
	Source         string    `json:"source"` // "isapi"
	DeviceSerialNo string    `json:"device_serial_no"`
	DeviceIP       string    `json:"device_ip"`
	ChannelID      int       `json:"channel_id"`
	IOPortID       int       `json:"io_port_id,omitempty"`
	CameraName     string    `json:"camera_name,omitempty"`

	EventType string `json:"event_type"` // normalized id, e.g. "motiondetection"
	UniqueID  string `json:"unique_id"`

	RegionID        int    `json:"region_id,omitempty"`
	DetectionTarget string `json:"detection_target,omitempty"`
	MACAddress      string `json:"mac_address,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
	ReceivedAt time.Time `json:"received_at"`

	DedupKey string `json:"dedup_key"`
}

// BuildDedupKey buckets the receive time to one second so the bursts some
// firmware sends for a single detection collapse to one event.
func BuildDedupKey(serialNo string, channelID, ioPortID int, eventType string, at time.Time) string {
	ts := at.Truncate(time.Second).Unix()
	return fmt.Sprintf("%s|%d|%d|%s|%d", serialNo, channelID, ioPortID, eventType, ts)
}
