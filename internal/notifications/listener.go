// Package notifications receives EventNotificationAlert callbacks that
// devices POST to the gateway, normalizes them and fans them out to the
// configured sinks.
package notifications

import (
	"bytes"
	"context"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/hikbridge/internal/device"
	"github.com/technosupport/hikbridge/internal/isapi"
	"github.com/technosupport/hikbridge/internal/metrics"
)

const maxBodyBytes = 8 << 20

// DeviceSource resolves inbound callbacks to a managed device. Source IP
// is the primary attribution key; the serial number in the payload is the
// fallback for devices behind NAT.
type DeviceSource interface {
	DeviceByIP(ip string) *device.Device
	DeviceBySerial(serialNo string) *device.Device
}

// StateSink records that an event fired so entity state can be read back
// without touching the device.
type StateSink interface {
	SetAlert(ctx context.Context, event *BridgeEvent) error
}

// Broadcaster pushes events to connected live consumers.
type Broadcaster interface {
	Broadcast(event *BridgeEvent)
}

// Listener is the shared notification endpoint. One instance serves every
// managed device; devices register on setup and deregister on teardown,
// and the route only accepts callbacks while at least one device is
// registered.
type Listener struct {
	source     DeviceSource
	sink       StateSink
	broadcast  Broadcaster
	publishers []Publisher
	dedup      *Dedup

	mu   sync.Mutex
	refs map[string]struct{}
}

func NewListener(source DeviceSource, sink StateSink, broadcast Broadcaster, publishers []Publisher, dedup *Dedup) *Listener {
	return &Listener{
		source:     source,
		sink:       sink,
		broadcast:  broadcast,
		publishers: publishers,
		dedup:      dedup,
		refs:       make(map[string]struct{}),
	}
}

// Register adds a device to the listener. Registering the same serial
// twice is a no-op.
func (l *Listener) Register(serialNo string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs[serialNo] = struct{}{}
	metrics.ListenerRegistrations.Set(float64(len(l.refs)))
}

func (l *Listener) Deregister(serialNo string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.refs, serialNo)
	metrics.ListenerRegistrations.Set(float64(len(l.refs)))
}

// Active reports whether any device is registered.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.refs) > 0
}

// ServeHTTP accepts one callback. It always answers 200 with a plain
// body; anything else makes some firmware re-send the same notification
// in a tight loop.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	}()

	if r.Method != http.MethodPost {
		metrics.RecordDrop("method")
		return
	}
	if !l.Active() {
		metrics.RecordDrop("inactive")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordDrop("read")
		return
	}

	doc, err := extractXML(r.Header.Get("Content-Type"), body)
	if err != nil {
		log.Printf("[WARN] notifications: no XML in callback from %s: %v", r.RemoteAddr, err)
		metrics.RecordDrop("no_xml")
		return
	}

	alert, err := isapi.ParseAlert(doc)
	if err != nil {
		log.Printf("[WARN] notifications: unusable callback from %s: %v", r.RemoteAddr, err)
		metrics.RecordDrop("parse")
		return
	}

	l.process(r.Context(), sourceIP(r), &alert)
}

// extractXML returns the alert document from a callback body. Smart
// events arrive as multipart posts mixing the XML with JPEG captures;
// plain events arrive as a bare document.
func extractXML(contentType string, body []byte) ([]byte, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return body, nil
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		partType := part.Header.Get("Content-Type")
		if strings.Contains(partType, "image") {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		if strings.Contains(partType, "xml") || strings.HasPrefix(strings.TrimSpace(string(data)), "<") {
			return data, nil
		}
	}
	return nil, io.ErrUnexpectedEOF
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *Listener) process(ctx context.Context, ip string, alert *isapi.Alert) {
	dev := l.source.DeviceByIP(ip)
	if dev == nil && alert.DeviceSerialNo != "" {
		dev = l.source.DeviceBySerial(alert.DeviceSerialNo)
	}
	if dev == nil {
		log.Printf("[WARN] notifications: callback from unmanaged source %s", ip)
		metrics.RecordDrop("unknown_device")
		return
	}

	channelID := dev.ResolveAlertChannel(alert.ChannelID)
	now := time.Now()

	event := &BridgeEvent{
		EventID:         uuid.New(),
		Source:          "isapi",
		DeviceSerialNo:  dev.Info.SerialNo,
		DeviceIP:        ip,
		ChannelID:       channelID,
		IOPortID:        alert.IOPortID,
		EventType:       alert.EventID,
		RegionID:        alert.RegionID,
		DetectionTarget: alert.DetectionTarget,
		MACAddress:      alert.MACAddress,
		ReceivedAt:      now,
		OccurredAt:      now,
	}
	if ts, err := time.Parse(time.RFC3339, alert.Timestamp); err == nil {
		event.OccurredAt = ts
	}
	if cam := dev.CameraByID(channelID); cam != nil {
		event.CameraName = cam.Name
	}
	if ev := dev.EventByID(channelID, alert.EventID); ev != nil && ev.UniqueID != "" {
		event.UniqueID = ev.UniqueID
	} else {
		event.UniqueID = device.EventUniqueID(dev.Info.SerialNo, channelID,
			isapi.EventInfo{ID: alert.EventID, IOPortID: alert.IOPortID})
	}
	event.DedupKey = BuildDedupKey(event.DeviceSerialNo, channelID, alert.IOPortID, event.EventType, now)

	if l.dedup != nil && l.dedup.IsDuplicate(event.DedupKey) {
		metrics.RecordDrop("duplicate")
		return
	}

	metrics.RecordAlert(event.EventType)

	if l.sink != nil {
		if err := l.sink.SetAlert(ctx, event); err != nil {
			log.Printf("[ERROR] notifications: state update for %s: %v", event.UniqueID, err)
		}
	}
	for _, pub := range l.publishers {
		if err := pub.Publish(event); err != nil {
			log.Printf("[ERROR] notifications: %s publish: %v", pub.Name(), err)
			metrics.RecordPublishFailure(pub.Name())
			continue
		}
		metrics.RecordPublish(pub.Name())
	}
	if l.broadcast != nil {
		l.broadcast.Broadcast(event)
	}
}
