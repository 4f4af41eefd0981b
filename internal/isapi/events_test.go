package isapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventURL(t *testing.T) {
	tests := []struct {
		name     string
		eventID  string
		channel  int
		ioPort   int
		connType string
		expected string
	}{
		{"basic direct", "motiondetection", 1, 0, ConnectionDirect, "System/Video/inputs/channels/1/motionDetection"},
		{"basic proxied", "motiondetection", 3, 0, ConnectionProxied, "ContentMgmt/InputProxy/channels/3/video/motionDetection"},
		{"smart direct", "linedetection", 2, 0, ConnectionDirect, "Smart/LineDetection/2"},
		{"io direct", "io", 0, 1, ConnectionDirect, "System/IO/inputs/1"},
		{"io proxied", "io", 0, 2, ConnectionProxied, "ContentMgmt/IOProxy/inputs/2"},
		{"pir", "pir", 1, 0, ConnectionDirect, "WLAlarm/PIR"},
		{"unknown", "nosuchevent", 1, 0, ConnectionDirect, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EventURL(tt.eventID, tt.channel, tt.ioPort, tt.connType))
		})
	}
}

func TestStateNode(t *testing.T) {
	assert.Equal(t, "MotionDetection", stateNode("motiondetection", 1, ConnectionDirect))
	assert.Equal(t, "IOInputPort", stateNode("io", 1, ConnectionDirect))
	assert.Equal(t, "IOProxyInputPort", stateNode("io", 1, ConnectionProxied))
	assert.Equal(t, "PIRAlarm", stateNode("pir", 0, ConnectionDirect))
	assert.Equal(t, "LineDetection", stateNode("linedetection", 2, ConnectionProxied))
}

const triggersDoc = `<EventNotification>
<EventTriggerList>
<EventTrigger>
<eventType>VMD</eventType>
<videoInputChannelID>1</videoInputChannelID>
<EventTriggerNotificationList>
<EventTriggerNotification><notificationMethod>center</notificationMethod></EventTriggerNotification>
<EventTriggerNotification><notificationMethod>beep</notificationMethod></EventTriggerNotification>
</EventTriggerNotificationList>
</EventTrigger>
<EventTrigger>
<eventType>linedetection</eventType>
<dynVideoInputChannelID>2</dynVideoInputChannelID>
</EventTrigger>
<EventTrigger>
<eventType>PIR</eventType>
<videoInputChannelID>1</videoInputChannelID>
</EventTrigger>
<EventTrigger>
<eventType>unsupportedKind</eventType>
<videoInputChannelID>1</videoInputChannelID>
</EventTrigger>
</EventTriggerList>
</EventNotification>`

func TestGetSupportedEvents(t *testing.T) {
	c, _ := newFixtureClient(t, map[string]string{
		"/ISAPI/Event/triggers": triggersDoc,
	})
	events, err := c.GetSupportedEvents(context.Background(), Capabilities{})
	assert.NoError(t, err)
	// PIR dropped (no capability), unsupported kind dropped
	assert.Len(t, events, 2)
	assert.Equal(t, "motiondetection", events[0].ID) // vmd normalized
	assert.Equal(t, 1, events[0].ChannelID)
	assert.Equal(t, []string{"center", "beep"}, events[0].Notifications)
	assert.Equal(t, "linedetection", events[1].ID)
	assert.Equal(t, 2, events[1].ChannelID)
}

func TestGetSupportedEventsPIRGate(t *testing.T) {
	c, _ := newFixtureClient(t, map[string]string{
		"/ISAPI/Event/triggers": triggersDoc,
	})
	events, err := c.GetSupportedEvents(context.Background(), Capabilities{PIR: true})
	assert.NoError(t, err)
	assert.True(t, hasEvent(events, "pir"))
}

func TestGetSupportedEventsBareListRoot(t *testing.T) {
	// Older firmware returns EventTriggerList as the document root.
	const doc = `<EventTriggerList>
<EventTrigger><eventType>shelteralarm</eventType><videoInputChannelID>1</videoInputChannelID></EventTrigger>
</EventTriggerList>`
	c, _ := newFixtureClient(t, map[string]string{
		"/ISAPI/Event/triggers": doc,
	})
	events, err := c.GetSupportedEvents(context.Background(), Capabilities{})
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, "tamperdetection", events[0].ID)
}

const motionDoc = `<?xml version="1.0" encoding="UTF-8"?>
<MotionDetection xmlns="http://www.hikvision.com/ver20/XMLSchema" version="2.0">
<enabled>false</enabled>
<enableHighlight>true</enableHighlight>
<samplingInterval>2</samplingInterval>
<MotionDetectionLayout>
<sensitivityLevel>60</sensitivityLevel>
</MotionDetectionLayout>
</MotionDetection>`

func TestGetEventEnabled(t *testing.T) {
	ev := EventInfo{ID: "motiondetection", ChannelID: 1}
	ev.URL = EventURL(ev.ID, ev.ChannelID, 0, ConnectionDirect)
	c, _ := newFixtureClient(t, map[string]string{
		"/ISAPI/System/Video/inputs/channels/1/motionDetection": motionDoc,
	})
	enabled, err := c.GetEventEnabled(context.Background(), ev, ConnectionDirect)
	assert.NoError(t, err)
	assert.False(t, enabled)
}

func TestSetEventEnabledPreservesDocument(t *testing.T) {
	var mu sync.Mutex
	var putBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(motionDoc))
		case http.MethodPut:
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			mu.Lock()
			putBody = string(buf)
			mu.Unlock()
			w.Write([]byte(`<ResponseStatus><statusCode>1</statusCode><statusString>OK</statusString></ResponseStatus>`))
		}
	}))
	defer srv.Close()

	c, err := New(Config{Host: srv.URL, Username: "admin", Password: "secret"})
	assert.NoError(t, err)

	ev := EventInfo{ID: "motiondetection", ChannelID: 1}
	ev.URL = EventURL(ev.ID, ev.ChannelID, 0, ConnectionDirect)
	assert.NoError(t, c.SetEventEnabled(context.Background(), ev, ConnectionDirect, true))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, putBody, "<enabled>true</enabled>")
	// untouched sibling flags survive the read-modify-write
	assert.Contains(t, putBody, "<enableHighlight>true</enableHighlight>")
	assert.Contains(t, putBody, "<sensitivityLevel>60</sensitivityLevel>")
}

func TestSetEventEnabledNoopSkipsWrite(t *testing.T) {
	putSeen := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodPut {
			putSeen = true
		}
		w.Write([]byte(motionDoc))
	}))
	defer srv.Close()

	c, err := New(Config{Host: srv.URL, Username: "admin", Password: "secret"})
	assert.NoError(t, err)

	ev := EventInfo{ID: "motiondetection", ChannelID: 1}
	ev.URL = EventURL(ev.ID, ev.ChannelID, 0, ConnectionDirect)
	assert.NoError(t, c.SetEventEnabled(context.Background(), ev, ConnectionDirect, false))
	assert.False(t, putSeen)
}
