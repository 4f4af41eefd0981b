package device

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	mu       sync.Mutex
	switches map[string]bool
	avail    map[string]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{switches: map[string]bool{}, avail: map[string]bool{}}
}

func (s *recordingSink) SetSwitch(ctx context.Context, uniqueID string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switches[uniqueID] = on
	return nil
}

func (s *recordingSink) SetAvailability(ctx context.Context, serialNo string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avail[serialNo] = available
	return nil
}

type staticSource struct{ services []*Service }

func (s staticSource) Services() []*Service { return s.services }

const doorbellInfoDoc = `<DeviceInfo>
<deviceName>doorbell</deviceName>
<model>DS-KV6113</model>
<serialNumber>DS-KV6113-WPE10220</serialNumber>
<deviceType>IPCamera</deviceType>
</DeviceInfo>`

const doorbellTriggersDoc = `<EventNotification><EventTriggerList>
<EventTrigger>
<eventType>VMD</eventType>
<videoInputChannelID>1</videoInputChannelID>
<EventTriggerNotificationList>
<EventTriggerNotification><notificationMethod>center</notificationMethod></EventTriggerNotification>
</EventTriggerNotificationList>
</EventTrigger>
</EventTriggerList></EventNotification>`

func TestCoordinatorRefreshEvents(t *testing.T) {
	c := fixtureDevice(t, map[string]string{
		"/ISAPI/System/deviceInfo":   doorbellInfoDoc,
		"/ISAPI/System/capabilities": `<DeviceCap></DeviceCap>`,
		"/ISAPI/Event/triggers":      doorbellTriggersDoc,
		"/ISAPI/System/Video/inputs/channels/1/motionDetection": `<MotionDetection><enabled>true</enabled></MotionDetection>`,
	})

	dev, err := Build(context.Background(), c)
	assert.NoError(t, err)
	svc := NewService(c, dev)

	sink := newRecordingSink()
	coord := NewCoordinator(CoordinatorConfig{}, staticSource{[]*Service{svc}}, sink)

	coord.refreshEvents(context.Background(), svc)

	assert.True(t, sink.switches["ds_kv6113_wpe10220_1_motiondetection"])
	assert.True(t, sink.avail["DS-KV6113-WPE10220"])
}

func TestCoordinatorMarksUnavailableOnReadFailure(t *testing.T) {
	// No motion detection document; the read fails and the device is
	// marked unavailable.
	c := fixtureDevice(t, map[string]string{
		"/ISAPI/System/deviceInfo":   doorbellInfoDoc,
		"/ISAPI/System/capabilities": `<DeviceCap></DeviceCap>`,
		"/ISAPI/Event/triggers":      doorbellTriggersDoc,
	})

	dev, err := Build(context.Background(), c)
	assert.NoError(t, err)
	svc := NewService(c, dev)

	sink := newRecordingSink()
	coord := NewCoordinator(CoordinatorConfig{}, staticSource{[]*Service{svc}}, sink)

	coord.refreshEvents(context.Background(), svc)

	assert.False(t, sink.avail["DS-KV6113-WPE10220"])
}

func TestCoordinatorStartStop(t *testing.T) {
	sink := newRecordingSink()
	coord := NewCoordinator(CoordinatorConfig{}, staticSource{}, sink)
	coord.Start()
	coord.Stop()
}

func TestCoordinatorStopIdempotent(t *testing.T) {
	coord := NewCoordinator(CoordinatorConfig{}, staticSource{}, newRecordingSink())
	coord.Start()
	coord.Stop()
	assert.NotPanics(t, func() { coord.Stop() })

	// Concurrent stops must not race on the quit channel either.
	var wg sync.WaitGroup
	coord2 := NewCoordinator(CoordinatorConfig{}, staticSource{}, newRecordingSink())
	coord2.Start()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotPanics(t, coord2.Stop)
		}()
	}
	wg.Wait()
}
