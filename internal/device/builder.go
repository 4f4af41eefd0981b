package device

import (
	"context"
	"fmt"
	"log"

	"github.com/technosupport/hikbridge/internal/isapi"
)

// Build assembles the full model of a device. Device info is mandatory;
// everything else degrades gracefully so that a device with quirky
// firmware still comes up with whatever could be read.
func Build(ctx context.Context, client *isapi.Client) (*Device, error) {
	info, err := client.GetDeviceInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("device info: %w", err)
	}

	caps, err := client.GetCapabilities(ctx)
	if err != nil {
		// Some cameras serve a capability document the decoder chokes
		// on. Treat them as a single-channel IP camera.
		log.Printf("[WARN] %s: capabilities unreadable, assuming single camera: %v", client.Hostname(), err)
		caps = isapi.Capabilities{}
	}
	info.IsNVR = caps.AnalogCameras+caps.DigitalCameras > 1

	if as, err := client.GetAlarmServer(ctx); err == nil && as != nil {
		caps.AlarmServer = true
	}

	dev := &Device{
		Info:         info,
		Capabilities: caps,
		RTSPPort:     client.GetRTSPPort(ctx),
	}

	if err := buildCameras(ctx, client, dev); err != nil {
		return nil, err
	}
	if err := attachEvents(ctx, client, dev); err != nil {
		return nil, err
	}

	if storage, err := client.GetStorage(ctx); err == nil {
		dev.Storage = storage
	} else {
		log.Printf("[DEBUG] %s: storage list unavailable: %v", client.Hostname(), err)
	}
	return dev, nil
}

func buildCameras(ctx context.Context, client *isapi.Client, dev *Device) error {
	if !dev.Info.IsNVR {
		name := dev.Info.Name
		if name == "" {
			name = dev.Info.Model
		}
		cam := isapi.Camera{
			ID:             1,
			Name:           name,
			Model:          dev.Info.Model,
			SerialNo:       dev.Info.SerialNo,
			Firmware:       dev.Info.Firmware,
			InputPort:      1,
			ConnectionType: isapi.ConnectionDirect,
			IPAddress:      dev.Info.IPAddress,
		}
		cam.Streams, _ = client.GetStreams(ctx, cam.ID)
		dev.Cameras = []isapi.Camera{cam}
		return nil
	}

	if dev.Capabilities.DigitalCameras > 0 {
		proxied, err := client.ListProxiedChannels(ctx)
		if err != nil {
			return fmt.Errorf("proxied channels: %w", err)
		}
		for _, ch := range proxied {
			cam := isapi.Camera{
				ID:             ch.ID,
				Name:           ch.Name,
				Model:          ch.Model,
				SerialNo:       ch.SerialNo,
				Firmware:       ch.Firmware,
				InputPort:      ch.Port,
				ConnectionType: isapi.ConnectionProxied,
				IPAddress:      ch.IP,
				IPPort:         ch.IPPort,
			}
			cam.Streams, _ = client.GetStreams(ctx, cam.ID)
			dev.Cameras = append(dev.Cameras, cam)
		}
	}

	if dev.Capabilities.AnalogCameras > 0 {
		analog, err := client.ListAnalogChannels(ctx)
		if err != nil {
			return fmt.Errorf("analog channels: %w", err)
		}
		for _, ch := range analog {
			cam := isapi.Camera{
				ID:             ch.ID,
				Name:           ch.Name,
				Model:          "Analog",
				SerialNo:       fmt.Sprintf("%s-VI%d", dev.Info.SerialNo, ch.ID),
				InputPort:      ch.InputPort,
				ConnectionType: isapi.ConnectionDirect,
			}
			cam.Streams, _ = client.GetStreams(ctx, cam.ID)
			dev.Cameras = append(dev.Cameras, cam)
		}
	}
	return nil
}

// attachEvents distributes the trigger list across the cameras and keeps
// IO and PIR triggers on the device itself. An event is armed at the
// entity level only when the device would actually push it to us.
func attachEvents(ctx context.Context, client *isapi.Client, dev *Device) error {
	events, err := client.GetSupportedEvents(ctx, dev.Capabilities)
	if err != nil {
		return fmt.Errorf("event triggers: %w", err)
	}

	for _, ev := range events {
		kind := isapi.Events[ev.ID].Kind
		switch {
		case kind == isapi.EventKindIO || kind == isapi.EventKindPIR:
			finishEvent(&ev, dev.Info.SerialNo, 0, isapi.ConnectionDirect)
			dev.Events = append(dev.Events, ev)
		default:
			cam := dev.CameraByID(ev.ChannelID)
			if cam == nil && !dev.Info.IsNVR && len(dev.Cameras) == 1 {
				cam = &dev.Cameras[0]
				ev.ChannelID = cam.ID
			}
			if cam == nil {
				continue
			}
			finishEvent(&ev, dev.Info.SerialNo, cam.ID, cam.ConnectionType)
			cam.Events = append(cam.Events, ev)
		}
	}
	return nil
}

func finishEvent(ev *isapi.EventInfo, serialNo string, channelID int, connectionType string) {
	ev.URL = isapi.EventURL(ev.ID, channelID, ev.IOPortID, connectionType)
	ev.UniqueID = EventUniqueID(serialNo, channelID, *ev)
	ev.Disabled = !notifiesCenter(ev.Notifications)
}

func notifiesCenter(methods []string) bool {
	for _, m := range methods {
		if m == "center" {
			return true
		}
	}
	return false
}
