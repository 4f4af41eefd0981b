// Package device builds and owns the data model of one Hikvision device:
// its identity, channel topology, per-channel streams and the detection
// events each channel supports.
package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/technosupport/hikbridge/internal/isapi"
)

// Device is the assembled model of one NVR/DVR or IP camera.
type Device struct {
	Info         isapi.DeviceInfo      `json:"info"`
	Capabilities isapi.Capabilities    `json:"capabilities"`
	Cameras      []isapi.Camera        `json:"cameras"`
	Events       []isapi.EventInfo     `json:"events"` // device-level (IO) events
	Storage      []isapi.StorageDevice `json:"storage,omitempty"`
	RTSPPort     int                   `json:"rtsp_port"`
}

// CameraByID returns the camera owning a channel id, or nil.
func (d *Device) CameraByID(channelID int) *isapi.Camera {
	if channelID == 0 {
		return nil
	}
	for i := range d.Cameras {
		if d.Cameras[i].ID == channelID {
			return &d.Cameras[i]
		}
	}
	return nil
}

// EventByID finds an event subscription by channel and event id. Channel 0
// addresses device-level events on the NVR itself.
func (d *Device) EventByID(channelID int, eventID string) *isapi.EventInfo {
	if channelID == 0 {
		for i := range d.Events {
			if d.Events[i].ID == eventID {
				return &d.Events[i]
			}
		}
		return nil
	}
	cam := d.CameraByID(channelID)
	if cam == nil {
		return nil
	}
	for i := range cam.Events {
		if cam.Events[i].ID == eventID {
			return &cam.Events[i]
		}
	}
	return nil
}

// ResolveAlertChannel maps the channel id of an inbound alert onto the
// model. DVRs that mix analog and IP channels report IP cameras as
// 32+input_port, which may not line up with the channel id.
func (d *Device) ResolveAlertChannel(channelID int) int {
	if channelID <= 32 {
		return channelID
	}
	for _, cam := range d.Cameras {
		if cam.ConnectionType == isapi.ConnectionProxied && cam.InputPort == channelID-32 {
			return cam.ID
		}
	}
	return channelID - 32
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// EventUniqueID derives the stable entity id of an event subscription.
func EventUniqueID(serialNo string, channelID int, ev isapi.EventInfo) string {
	id := slugify(serialNo)
	if channelID != 0 {
		id += fmt.Sprintf("_%d", channelID)
	}
	if ev.IOPortID != 0 {
		id += fmt.Sprintf("_%d", ev.IOPortID)
	}
	return id + "_" + ev.ID
}
