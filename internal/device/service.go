package device

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/technosupport/hikbridge/internal/isapi"
)

var (
	ErrEventNotFound   = errors.New("event not supported on channel")
	ErrChannelNotFound = errors.New("channel not found")
	ErrStreamNotFound  = errors.New("stream not found")
)

// Service runs control operations against one device using its assembled
// model. It is safe to share across handlers; the model itself is
// replaced wholesale on refresh, never mutated in place.
type Service struct {
	client *isapi.Client
	dev    *Device
}

func NewService(client *isapi.Client, dev *Device) *Service {
	return &Service{client: client, dev: dev}
}

func (s *Service) Device() *Device       { return s.dev }
func (s *Service) Client() *isapi.Client { return s.client }

// ArmEvent enables or disables one detection event. Arming is refused
// with *isapi.MutexError when a mutually exclusive event type is already
// armed on the device; the subscription state is left untouched in that
// case.
func (s *Service) ArmEvent(ctx context.Context, channelID int, eventID string, enable bool) error {
	ev := s.dev.EventByID(channelID, eventID)
	if ev == nil {
		return fmt.Errorf("%w: %s on channel %d", ErrEventNotFound, eventID, channelID)
	}

	meta := isapi.Events[ev.ID]
	if enable && meta.Mutex && s.dev.Capabilities.EventMutexChecking {
		issues, err := s.client.CheckMutex(ctx, ev.ID, ev.ChannelID)
		if err != nil {
			return fmt.Errorf("mutex check: %w", err)
		}
		if len(issues) > 0 {
			return &isapi.MutexError{EventID: ev.ID, Issues: issues}
		}
	}

	connType := isapi.ConnectionDirect
	if cam := s.dev.CameraByID(channelID); cam != nil {
		connType = cam.ConnectionType
	}
	return s.client.SetEventEnabled(ctx, *ev, connType, enable)
}

// EventArmed reads the current enabled flag of a detection event.
func (s *Service) EventArmed(ctx context.Context, channelID int, eventID string) (bool, error) {
	ev := s.dev.EventByID(channelID, eventID)
	if ev == nil {
		return false, fmt.Errorf("%w: %s on channel %d", ErrEventNotFound, eventID, channelID)
	}
	connType := isapi.ConnectionDirect
	if cam := s.dev.CameraByID(channelID); cam != nil {
		connType = cam.ConnectionType
	}
	return s.client.GetEventEnabled(ctx, *ev, connType)
}

// Snapshot grabs a JPEG frame from a channel's stream. Stream type 1 is
// the main stream; pass 0 to use it.
func (s *Service) Snapshot(ctx context.Context, channelID, streamTypeID, width, height int) ([]byte, error) {
	cam := s.dev.CameraByID(channelID)
	if cam == nil {
		return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, channelID)
	}
	if streamTypeID == 0 {
		streamTypeID = 1
	}
	for i := range cam.Streams {
		if cam.Streams[i].TypeID == streamTypeID {
			return s.client.GetSnapshot(ctx, &cam.Streams[i], width, height)
		}
	}
	return nil, fmt.Errorf("%w: channel %d type %d", ErrStreamNotFound, channelID, streamTypeID)
}

// StreamURL returns the credentialed RTSP address of a stream. Callers
// must not log it.
func (s *Service) StreamURL(channelID, streamTypeID int) (string, error) {
	cam := s.dev.CameraByID(channelID)
	if cam == nil {
		return "", fmt.Errorf("%w: %d", ErrChannelNotFound, channelID)
	}
	for _, st := range cam.Streams {
		if st.TypeID == streamTypeID {
			return s.client.RTSPSource(st, s.dev.RTSPPort), nil
		}
	}
	return "", fmt.Errorf("%w: channel %d type %d", ErrStreamNotFound, channelID, streamTypeID)
}

// SetHolidayMode toggles the first holiday slot, spanning today through a
// year out so the mode stays in force until switched off.
func (s *Service) SetHolidayMode(ctx context.Context, enable bool) error {
	if !s.dev.Capabilities.HolidayMode {
		return fmt.Errorf("device does not support holiday mode")
	}
	now := time.Now()
	return s.client.SetHolidayEnabled(ctx, enable,
		now.Format("2006-01-02"), now.AddDate(1, 0, 0).Format("2006-01-02"))
}

// Reboot restarts the device. Connections drop and the model goes stale
// until the device is set up again.
func (s *Service) Reboot(ctx context.Context) error {
	log.Printf("[WARN] rebooting %s", s.client.Hostname())
	return s.client.Reboot(ctx)
}
