package isapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"regexp"
)

// EventURL returns the address of the detection-toggle document for an
// event on a channel. The URL shape depends on the event category and on
// whether the channel is proxied through an NVR.
func EventURL(eventID string, channelID, ioPortID int, connectionType string) string {
	meta, ok := Events[eventID]
	if !ok {
		return ""
	}
	switch meta.Kind {
	case EventKindBasic:
		if connectionType == ConnectionProxied {
			return fmt.Sprintf("ContentMgmt/InputProxy/channels/%d/video/%s", channelID, meta.Slug)
		}
		return fmt.Sprintf("System/Video/inputs/channels/%d/%s", channelID, meta.Slug)
	case EventKindIO:
		if connectionType == ConnectionProxied {
			return fmt.Sprintf("ContentMgmt/IOProxy/%s/%d", meta.Slug, ioPortID)
		}
		return fmt.Sprintf("System/IO/%s/%d", meta.Slug, ioPortID)
	case EventKindPIR:
		return meta.Slug
	default:
		return fmt.Sprintf("Smart/%s/%d", meta.Slug, channelID)
	}
}

// stateNode returns the XML element that carries the enabled flag of an
// event document. A handful of event types use an alternate node name
// depending on the connection type.
func stateNode(eventID string, channelID int, connectionType string) string {
	meta := Events[eventID]
	slug := meta.Slug
	if channelID == 0 {
		// Device-level event on the NVR itself.
		if meta.DirectNode != "" {
			slug = meta.DirectNode
		}
	} else {
		if connectionType == ConnectionDirect && meta.DirectNode != "" {
			slug = meta.DirectNode
		}
		if connectionType == ConnectionProxied && meta.ProxiedNode != "" {
			slug = meta.ProxiedNode
		}
	}
	// First letter uppercased, e.g. motionDetection -> MotionDetection.
	return string(slug[0]&^0x20) + slug[1:]
}

// GetSupportedEvents fetches Event/triggers and maps each trigger onto the
// event registry. PIR is gated on the wireless alarm capability; scene
// change is probed separately on devices that support it but omit it from
// the trigger list.
func (c *Client) GetSupportedEvents(ctx context.Context, caps Capabilities) ([]EventInfo, error) {
	triggers, err := c.fetchTriggers(ctx)
	if err != nil {
		return nil, err
	}

	var events []EventInfo
	for _, trig := range triggers {
		if ev, ok := c.triggerToEvent(trig, caps); ok {
			events = append(events, ev)
		}
	}

	if caps.SceneChangeDetection && !hasEvent(events, "scenechangedetection") {
		var single singleEventTriggerXML
		if err := c.GetXML(ctx, "Event/triggers/scenechangedetection-1", &single); err == nil {
			if ev, ok := c.triggerToEvent(single.eventTriggerXML, caps); ok {
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

func (c *Client) fetchTriggers(ctx context.Context) ([]eventTriggerXML, error) {
	data, err := c.Do(ctx, "GET", "Event/triggers", nil)
	if err != nil {
		return nil, err
	}
	// Root element differs across firmware generations.
	var wrapped eventTriggersXML
	if err := xml.Unmarshal(data, &wrapped); err == nil {
		return wrapped.TriggerList.Triggers, nil
	}
	var bare eventTriggerListXML
	if err := xml.Unmarshal(data, &bare); err == nil {
		return bare.Triggers, nil
	}
	return nil, fmt.Errorf("decode Event/triggers: unrecognized document")
}

func (c *Client) triggerToEvent(trig eventTriggerXML, caps Capabilities) (EventInfo, bool) {
	if trig.EventType == "" {
		return EventInfo{}, false
	}
	id := NormalizeEventID(trig.EventType)
	if _, ok := Events[id]; !ok {
		return EventInfo{}, false
	}
	if id == "pir" && !caps.PIR {
		return EventInfo{}, false
	}

	channelID := intOr(trig.VideoInputChannelID, intOr(trig.DynVideoInputChannel, 0))
	ioPort := intOr(trig.InputIOPortID, intOr(trig.DynInputIOPortID, 0))

	var methods []string
	for _, n := range trig.NotificationListOuter.Notifications {
		methods = append(methods, n.Method)
	}

	return EventInfo{
		ID:            id,
		ChannelID:     channelID,
		IOPortID:      ioPort,
		Notifications: methods,
	}, true
}

func hasEvent(events []EventInfo, id string) bool {
	for _, e := range events {
		if e.ID == id {
			return true
		}
	}
	return false
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

var enabledRe = regexp.MustCompile(`<enabled(?:\s[^>]*)?>(true|false)</enabled>`)

// nodeEnabled locates the enabled flag of the named state node in a raw
// detection document. The flag is the first <enabled> element inside the
// node; documents can carry further enabled flags in nested sections.
func nodeEnabled(doc []byte, node string) (value bool, start, end int, ok bool) {
	open := []byte("<" + node)
	openIdx := bytes.Index(doc, open)
	if openIdx < 0 {
		return false, 0, 0, false
	}
	closeIdx := bytes.Index(doc[openIdx:], []byte("</"+node+">"))
	segEnd := len(doc)
	if closeIdx >= 0 {
		segEnd = openIdx + closeIdx
	}
	loc := enabledRe.FindSubmatchIndex(doc[openIdx:segEnd])
	if loc == nil {
		return false, 0, 0, false
	}
	return string(doc[openIdx+loc[2]:openIdx+loc[3]]) == "true", openIdx + loc[0], openIdx + loc[1], true
}

// GetEventEnabled reads the armed state of an event from its detection
// document.
func (c *Client) GetEventEnabled(ctx context.Context, ev EventInfo, connectionType string) (bool, error) {
	if ev.URL == "" {
		log.Printf("[WARN] isapi: no detection document address for event %s", ev.ID)
		return false, nil
	}
	doc, err := c.Do(ctx, "GET", ev.URL, nil)
	if err != nil {
		return false, err
	}
	enabled, _, _, ok := nodeEnabled(doc, stateNode(ev.ID, ev.ChannelID, connectionType))
	if !ok {
		return false, nil
	}
	return enabled, nil
}

// SetEventEnabled arms or disarms an event by read-modify-writing its
// detection document, preserving every field the firmware put there. A
// no-op write is skipped.
func (c *Client) SetEventEnabled(ctx context.Context, ev EventInfo, connectionType string, enable bool) error {
	if ev.URL == "" {
		return fmt.Errorf("no detection document address for event %s", ev.ID)
	}
	doc, err := c.Do(ctx, "GET", ev.URL, nil)
	if err != nil {
		return err
	}
	node := stateNode(ev.ID, ev.ChannelID, connectionType)
	current, start, end, ok := nodeEnabled(doc, node)
	if !ok {
		return fmt.Errorf("event %s: detection document has no enabled flag in %s", ev.ID, node)
	}
	if current == enable {
		return nil
	}
	var updated []byte
	updated = append(updated, doc[:start]...)
	updated = append(updated, []byte(fmt.Sprintf("<enabled>%s</enabled>", boolToStr(enable)))...)
	updated = append(updated, doc[end:]...)
	return c.PutRaw(ctx, ev.URL, updated)
}
