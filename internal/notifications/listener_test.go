package notifications

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/technosupport/hikbridge/internal/device"
	"github.com/technosupport/hikbridge/internal/isapi"
)

const motionAlertDoc = `<?xml version="1.0" encoding="UTF-8"?>
<EventNotificationAlert version="2.0">
<ipAddress>192.168.1.64</ipAddress>
<macAddress>01:17:24:45:D9:F4</macAddress>
<channelID>1</channelID>
<dateTime>2024-03-10T12:00:15Z</dateTime>
<eventType>VMD</eventType>
<eventState>active</eventState>
</EventNotificationAlert>`

type fakeSource struct {
	dev *device.Device
}

func (f *fakeSource) DeviceByIP(ip string) *device.Device         { return f.dev }
func (f *fakeSource) DeviceBySerial(serial string) *device.Device { return f.dev }

type fakeSink struct {
	mu     sync.Mutex
	events []*BridgeEvent
}

func (f *fakeSink) SetAlert(ctx context.Context, event *BridgeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*BridgeEvent
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) Publish(event *BridgeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func testDevice() *device.Device {
	return &device.Device{
		Info: isapi.DeviceInfo{SerialNo: "DS-7608TEST", IsNVR: true},
		Cameras: []isapi.Camera{{
			ID:             1,
			Name:           "yard",
			ConnectionType: isapi.ConnectionProxied,
			InputPort:      1,
			Events: []isapi.EventInfo{{
				ID:        "motiondetection",
				ChannelID: 1,
				UniqueID:  "ds_7608test_1_motiondetection",
			}},
		}},
	}
}

func newTestListener(dev *device.Device) (*Listener, *fakeSink, *fakePublisher) {
	sink := &fakeSink{}
	pub := &fakePublisher{}
	l := NewListener(&fakeSource{dev: dev}, sink, nil, []Publisher{pub}, NewDedup(128, time.Second))
	return l, sink, pub
}

func postAlert(t *testing.T, l *Listener, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/hikvision", bytes.NewReader(body))
	req.RemoteAddr = "192.168.1.64:4312"
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, req)
	return rec
}

func TestListenerInactiveIgnoresCallbacks(t *testing.T) {
	l, sink, pub := newTestListener(testDevice())

	rec := postAlert(t, l, "application/xml", []byte(motionAlertDoc))
	// the device still gets its 200 so it does not hammer the route
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 0, pub.count())
}

func TestListenerRegistrationLifecycle(t *testing.T) {
	l, _, _ := newTestListener(testDevice())
	assert.False(t, l.Active())

	l.Register("A")
	l.Register("B")
	l.Register("A") // repeat registration does not double count
	assert.True(t, l.Active())

	l.Deregister("A")
	assert.True(t, l.Active())
	l.Deregister("B")
	assert.False(t, l.Active())
}

func TestListenerDirectXML(t *testing.T) {
	l, sink, pub := newTestListener(testDevice())
	l.Register("DS-7608TEST")

	rec := postAlert(t, l, "application/xml", []byte(motionAlertDoc))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 1, pub.count())
	ev := pub.events[0]
	assert.Equal(t, "motiondetection", ev.EventType)
	assert.Equal(t, "DS-7608TEST", ev.DeviceSerialNo)
	assert.Equal(t, "192.168.1.64", ev.DeviceIP)
	assert.Equal(t, 1, ev.ChannelID)
	assert.Equal(t, "yard", ev.CameraName)
	assert.Equal(t, "ds_7608test_1_motiondetection", ev.UniqueID)
	assert.Equal(t, 2024, ev.OccurredAt.Year())
	assert.NotEmpty(t, ev.DedupKey)
}

func TestListenerMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	imgHdr := textproto.MIMEHeader{}
	imgHdr.Set("Content-Type", "image/jpeg")
	img, err := mw.CreatePart(imgHdr)
	assert.NoError(t, err)
	img.Write([]byte{0xff, 0xd8, 0xff})

	xmlHdr := textproto.MIMEHeader{}
	xmlHdr.Set("Content-Type", "application/xml")
	part, err := mw.CreatePart(xmlHdr)
	assert.NoError(t, err)
	part.Write([]byte(motionAlertDoc))
	assert.NoError(t, mw.Close())

	l, sink, _ := newTestListener(testDevice())
	l.Register("DS-7608TEST")

	rec := postAlert(t, l, mw.FormDataContentType(), buf.Bytes())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, "motiondetection", sink.events[0].EventType)
}

func TestListenerGarbageDropped(t *testing.T) {
	l, sink, pub := newTestListener(testDevice())
	l.Register("DS-7608TEST")

	rec := postAlert(t, l, "application/xml", []byte("this is not xml"))
	// still 200, but nothing downstream changes
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 0, pub.count())
}

func TestListenerDeduplicates(t *testing.T) {
	l, _, pub := newTestListener(testDevice())
	l.Register("DS-7608TEST")

	postAlert(t, l, "application/xml", []byte(motionAlertDoc))
	postAlert(t, l, "application/xml", []byte(motionAlertDoc))
	assert.Equal(t, 1, pub.count())
}

func TestListenerDVRChannelRemap(t *testing.T) {
	dev := testDevice()
	dev.Cameras[0].ID = 5

	const doc = `<EventNotificationAlert>
<channelID>33</channelID>
<eventType>VMD</eventType>
</EventNotificationAlert>`

	l, sink, _ := newTestListener(dev)
	l.Register("DS-7608TEST")

	postAlert(t, l, "application/xml", []byte(doc))
	assert.Equal(t, 1, sink.count())
	// 33 maps back to the proxied camera on input port 1
	assert.Equal(t, 5, sink.events[0].ChannelID)
}

func TestListenerUnescapedAmpersand(t *testing.T) {
	const doc = `<EventNotificationAlert>
<channelID>1</channelID>
<eventType>VMD</eventType>
<eventDescription>Tom & Jerry cam</eventDescription>
</EventNotificationAlert>`

	l, sink, _ := newTestListener(testDevice())
	l.Register("DS-7608TEST")

	postAlert(t, l, "application/xml", []byte(doc))
	assert.Equal(t, 1, sink.count())
}
