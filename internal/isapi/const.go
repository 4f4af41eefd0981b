package isapi

import "strings"

const (
	// DefaultTimeout bounds every ISAPI request.
	DefaultTimeoutSeconds = 20

	// DefaultRTSPPort is assumed until Security/adminAccesses says otherwise.
	DefaultRTSPPort = 554

	// NullAlarmServer is the placeholder address devices are reverted to
	// when the gateway stops managing their notification host.
	NullAlarmServerURL = "http://0.0.0.0:80"
)

// Connection type of a camera relative to the queried device.
const (
	ConnectionDirect  = "Direct"
	ConnectionProxied = "Proxied"
)

// Event categories. The category decides which ISAPI URL shape carries the
// detection toggle for the event.
const (
	EventKindBasic = "basic"
	EventKindSmart = "smart"
	EventKindIO    = "io"
	EventKindPIR   = "pir"
)

// EventMeta describes one detection event type the gateway understands.
type EventMeta struct {
	Kind        string
	Label       string
	Slug        string
	Mutex       bool
	DirectNode  string // alternate XML state node for direct channels
	ProxiedNode string // alternate XML state node for proxied channels
}

// Events is the registry of supported detection event types, keyed by the
// normalized lowercase event id used on the wire.
var Events = map[string]EventMeta{
	"motiondetection": {
		Kind:  EventKindBasic,
		Label: "Motion",
		Slug:  "motionDetection",
		Mutex: true,
	},
	"tamperdetection": {
		Kind:  EventKindBasic,
		Label: "Video Tampering",
		Slug:  "tamperDetection",
	},
	"videoloss": {
		Kind:  EventKindBasic,
		Label: "Video Loss",
		Slug:  "videoLoss",
	},
	"scenechangedetection": {
		Kind:  EventKindSmart,
		Label: "Scene Change",
		Slug:  "SceneChangeDetection",
		Mutex: true,
	},
	"fielddetection": {
		Kind:  EventKindSmart,
		Label: "Intrusion",
		Slug:  "FieldDetection",
		Mutex: true,
	},
	"linedetection": {
		Kind:  EventKindSmart,
		Label: "Line Crossing",
		Slug:  "LineDetection",
		Mutex: true,
	},
	"regionentrance": {
		Kind:  EventKindSmart,
		Label: "Region Entrance",
		Slug:  "regionEntrance",
	},
	"regionexiting": {
		Kind:  EventKindSmart,
		Label: "Region Exiting",
		Slug:  "regionExiting",
	},
	"io": {
		Kind:        EventKindIO,
		Label:       "Alarm Input",
		Slug:        "inputs",
		DirectNode:  "IOInputPort",
		ProxiedNode: "IOProxyInputPort",
	},
	"pir": {
		Kind:       EventKindPIR,
		Label:      "PIR",
		Slug:       "WLAlarm/PIR",
		DirectNode: "PIRAlarm",
	},
	"thermometry": {
		Kind:  EventKindBasic,
		Label: "Thermometry",
		Slug:  "thermometry",
	},
}

// Some firmware reports events under legacy or AI-suffixed identifiers.
var alternateEventIDs = map[string]string{
	"vmd":             "motiondetection",
	"shelteralarm":    "tamperdetection",
	"vmdhumanvehicle": "motiondetection",
}

// mutexAlternateIDs maps event ids to the identifier the mutexFunction API
// expects, where it differs from the trigger id.
var mutexAlternateIDs = map[string]string{
	"motiondetection": "VMDHumanVehicle",
}

// StreamTypes maps the stream type digit of a stream id to its display name.
var StreamTypes = map[int]string{
	1: "Main Stream",
	2: "Sub-stream",
	3: "Third Stream",
	4: "Transcoded Stream",
}

// NormalizeEventID lowercases a raw wire event type and resolves alternate
// identifiers to the canonical event id.
func NormalizeEventID(raw string) string {
	id := strings.ToLower(raw)
	if alt, ok := alternateEventIDs[id]; ok {
		return alt
	}
	return id
}

// MutexFunctionID returns the identifier to send to System/mutexFunction
// for the given event id.
func MutexFunctionID(eventID string) string {
	if alt, ok := mutexAlternateIDs[eventID]; ok {
		return alt
	}
	return eventID
}
