package isapi

import (
	"encoding/xml"
	"fmt"
)

// EscapeBareAmpersands rewrites '&' characters that do not begin a valid
// XML entity as '&amp;'. Some firmware builds post alert payloads with
// unescaped ampersands in free-text fields, which the XML parser rejects.
func EscapeBareAmpersands(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != '&' {
			out = append(out, b)
			continue
		}
		if validEntityAt(data, i) {
			out = append(out, b)
			continue
		}
		out = append(out, []byte("&amp;")...)
	}
	return out
}

func validEntityAt(data []byte, i int) bool {
	// Scan at most 10 bytes for a terminating ';' over [#a-zA-Z0-9].
	j := i + 1
	limit := i + 10
	if limit > len(data) {
		limit = len(data)
	}
	for ; j < limit; j++ {
		c := data[j]
		if c == ';' {
			return j > i+1
		}
		if c == '#' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return false
}

// ParseAlert decodes an inbound EventNotificationAlert payload. It
// tolerates the documented firmware defects: unescaped ampersands and
// version-2.0 payloads that bury the event type in a duration list.
func ParseAlert(data []byte) (Alert, error) {
	var raw eventAlertXML
	if err := xml.Unmarshal(EscapeBareAmpersands(data), &raw); err != nil {
		return Alert{}, fmt.Errorf("decode alert: %w", err)
	}

	eventID := raw.EventType
	if eventID == "" || eventID == "duration" {
		if len(raw.DurationList.Duration) == 0 {
			return Alert{}, fmt.Errorf("alert has no event type")
		}
		eventID = raw.DurationList.Duration[0].RelationEvent
	}
	eventID = NormalizeEventID(eventID)
	if _, ok := Events[eventID]; !ok {
		return Alert{}, fmt.Errorf("unsupported event %q", eventID)
	}

	alert := Alert{
		ChannelID:      intOr(raw.ChannelID, intOr(raw.DynChannelID, 0)),
		IOPortID:       intOr(raw.InputIOPort, 0),
		EventID:        eventID,
		DeviceSerialNo: raw.Extensions.SerialNumber,
		MACAddress:     raw.MacAddress,
		Timestamp:      raw.DateTime,
	}
	if len(raw.DetectionRegionList.Entries) > 0 {
		alert.RegionID = raw.DetectionRegionList.Entries[0].RegionID
		alert.DetectionTarget = raw.DetectionRegionList.Entries[0].DetectionTarget
	}
	return alert, nil
}
