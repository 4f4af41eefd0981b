package isapi

import "encoding/xml"

// Typed XML documents for the subset of ISAPI the gateway consumes. Vendor
// schemas are loose; optional fields get explicit defaults at decode sites
// rather than relying on zero values being meaningful.

type deviceInfoXML struct {
	XMLName         xml.Name `xml:"DeviceInfo"`
	DeviceName      string   `xml:"deviceName"`
	Model           string   `xml:"model"`
	SerialNumber    string   `xml:"serialNumber"`
	FirmwareVersion string   `xml:"firmwareVersion"`
	MacAddress      string   `xml:"macAddress"`
	Manufacturer    string   `xml:"manufacturer"`
	DeviceType      string   `xml:"deviceType"`
}

type capabilitiesXML struct {
	XMLName xml.Name `xml:"DeviceCap"`
	SysCap  struct {
		VideoCap struct {
			VideoInputPortNums int `xml:"videoInputPortNums"`
		} `xml:"VideoCap"`
		IOCap struct {
			IOInputPortNums  int `xml:"IOInputPortNums"`
			IOOutputPortNums int `xml:"IOOutputPortNums"`
		} `xml:"IOCap"`
		IsSupportHoliday string `xml:"isSupportHolidy"` // sic, vendor typo
	} `xml:"SysCap"`
	RacmCap struct {
		InputProxyNums    int    `xml:"inputProxyNums"`
		IsSupportZeroChan string `xml:"isSupportZeroChan"`
	} `xml:"RacmCap"`
	WLAlarmCap struct {
		IsSupportPIR string `xml:"isSupportPIR"`
	} `xml:"WLAlarmCap"`
	SmartCap struct {
		IsSupportSceneChangeDetection string `xml:"isSupportSceneChangeDetection"`
	} `xml:"SmartCap"`
	IsSupportMutexErrMsg string `xml:"isSupportGetmutexFuncErrMsg"`
}

type inputProxyChannelListXML struct {
	XMLName  xml.Name `xml:"InputProxyChannelList"`
	Channels []struct {
		ID     int    `xml:"id"`
		Name   string `xml:"name"`
		Source *struct {
			ProxyProtocol   string `xml:"proxyProtocol"`
			IPAddress       string `xml:"ipAddress"`
			ManagePortNo    int    `xml:"managePortNo"`
			SrcInputPort    int    `xml:"srcInputPort"`
			Model           string `xml:"model"`
			SerialNumber    string `xml:"serialNumber"`
			FirmwareVersion string `xml:"firmwareVersion"`
		} `xml:"sourceInputPortDescriptor"`
	} `xml:"InputProxyChannel"`
}

type videoInputChannelListXML struct {
	XMLName  xml.Name `xml:"VideoInputChannelList"`
	Channels []struct {
		ID        int    `xml:"id"`
		Name      string `xml:"name"`
		InputPort int    `xml:"inputPort"`
		ResDesc   string `xml:"resDesc"`
	} `xml:"VideoInputChannel"`
}

type streamingChannelXML struct {
	XMLName     xml.Name `xml:"StreamingChannel"`
	ID          int      `xml:"id"`
	ChannelName string   `xml:"channelName"`
	Enabled     bool     `xml:"enabled"`
	Video       struct {
		VideoCodecType        string `xml:"videoCodecType"`
		VideoResolutionWidth  int    `xml:"videoResolutionWidth"`
		VideoResolutionHeight int    `xml:"videoResolutionHeight"`
	} `xml:"Video"`
	Audio struct {
		Enabled string `xml:"enabled"`
	} `xml:"Audio"`
}

type adminAccessProtocolListXML struct {
	XMLName   xml.Name `xml:"AdminAccessProtocolList"`
	Protocols []struct {
		Protocol string `xml:"protocol"`
		PortNo   int    `xml:"portNo"`
	} `xml:"AdminAccessProtocol"`
}

type eventTriggerXML struct {
	EventType             string `xml:"eventType"`
	VideoInputChannelID   *int   `xml:"videoInputChannelID"`
	DynVideoInputChannel  *int   `xml:"dynVideoInputChannelID"`
	InputIOPortID         *int   `xml:"inputIOPortID"`
	DynInputIOPortID      *int   `xml:"dynInputIOPortID"`
	NotificationListOuter struct {
		Notifications []struct {
			Method string `xml:"notificationMethod"`
		} `xml:"EventTriggerNotification"`
	} `xml:"EventTriggerNotificationList"`
}

type eventTriggersXML struct {
	XMLName     xml.Name `xml:"EventNotification"`
	TriggerList struct {
		Triggers []eventTriggerXML `xml:"EventTrigger"`
	} `xml:"EventTriggerList"`
}

// Some firmware returns the trigger list as the document root.
type eventTriggerListXML struct {
	XMLName  xml.Name          `xml:"EventTriggerList"`
	Triggers []eventTriggerXML `xml:"EventTrigger"`
}

type singleEventTriggerXML struct {
	XMLName xml.Name `xml:"EventTrigger"`
	eventTriggerXML
}

type httpHostNotificationXML struct {
	XMLName              xml.Name `xml:"HttpHostNotification"`
	ID                   string   `xml:"id"`
	URL                  string   `xml:"url"`
	ProtocolType         string   `xml:"protocolType"`
	ParameterFormatType  string   `xml:"parameterFormatType"`
	AddressingFormatType string   `xml:"addressingFormatType"`
	HostName             string   `xml:"hostName,omitempty"`
	IPAddress            string   `xml:"ipAddress,omitempty"`
	PortNo               int      `xml:"portNo"`
	HTTPAuthMethod       string   `xml:"httpAuthenticationMethod"`
}

type httpHostNotificationListXML struct {
	XMLName xml.Name                  `xml:"HttpHostNotificationList"`
	Hosts   []httpHostNotificationXML `xml:"HttpHostNotification"`
}

type ioPortStatusXML struct {
	XMLName xml.Name `xml:"IOPortStatus"`
	IOState string   `xml:"ioState"`
}

type ioPortDataXML struct {
	XMLName     xml.Name `xml:"IOPortData"`
	OutputState string   `xml:"outputState"`
}

type storageXML struct {
	XMLName xml.Name `xml:"storage"`
	HDDList struct {
		HDDs []struct {
			ID        int    `xml:"id"`
			HDDName   string `xml:"hddName"`
			HDDType   string `xml:"hddType"`
			Status    string `xml:"status"`
			Capacity  int64  `xml:"capacity"`
			FreeSpace int64  `xml:"freeSpace"`
			Property  string `xml:"property"`
		} `xml:"hdd"`
	} `xml:"hddList"`
	NASList struct {
		NAS []struct {
			ID        int    `xml:"id"`
			Path      string `xml:"path"`
			NASType   string `xml:"nasType"`
			Status    string `xml:"status"`
			Capacity  int64  `xml:"capacity"`
			FreeSpace int64  `xml:"freeSpace"`
			Property  string `xml:"property"`
			IPAddress string `xml:"ipAddress"`
		} `xml:"nas"`
	} `xml:"nasList"`
}

type responseStatusXML struct {
	XMLName       xml.Name `xml:"ResponseStatus"`
	StatusCode    int      `xml:"statusCode"`
	StatusString  string   `xml:"statusString"`
	SubStatusCode string   `xml:"subStatusCode"`
}

type eventAlertXML struct {
	XMLName      xml.Name `xml:"EventNotificationAlert"`
	IPAddress    string   `xml:"ipAddress"`
	MacAddress   string   `xml:"macAddress"`
	ChannelID    *int     `xml:"channelID"`
	DynChannelID *int     `xml:"dynChannelID"`
	InputIOPort  *int     `xml:"inputIOPortID"`
	EventType    string   `xml:"eventType"`
	EventState   string   `xml:"eventState"`
	DateTime     string   `xml:"dateTime"`
	Extensions   struct {
		SerialNumber string `xml:"serialNumber"`
	} `xml:"Extensions"`
	DurationList struct {
		Duration []struct {
			RelationEvent string `xml:"relationEvent"`
		} `xml:"Duration"`
	} `xml:"DurationList"`
	DetectionRegionList struct {
		Entries []struct {
			RegionID        int    `xml:"regionID"`
			DetectionTarget string `xml:"detectionTarget"`
		} `xml:"DetectionRegionEntry"`
	} `xml:"DetectionRegionList"`
}

// --- public data model ---

// DeviceInfo holds the shared identity of an NVR/DVR or single IP camera.
type DeviceInfo struct {
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNo     string `json:"serial_no"`
	Firmware     string `json:"firmware"`
	MACAddress   string `json:"mac_address"`
	IPAddress    string `json:"ip_address"`
	DeviceType   string `json:"device_type"`
	IsNVR        bool   `json:"is_nvr"`
}

// Capabilities holds the capability flags the gateway cares about.
type Capabilities struct {
	AnalogCameras        int  `json:"analog_cameras"`
	DigitalCameras       int  `json:"digital_cameras"`
	HolidayMode          bool `json:"holiday_mode"`
	ChannelZero          bool `json:"channel_zero"`
	EventMutexChecking   bool `json:"event_mutex_checking"`
	AlarmServer          bool `json:"alarm_server"`
	PIR                  bool `json:"pir"`
	SceneChangeDetection bool `json:"scene_change_detection"`
	InputPorts           int  `json:"input_ports"`
	OutputPorts          int  `json:"output_ports"`
}

// StreamInfo holds one stream profile of a camera channel.
type StreamInfo struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	TypeID   int    `json:"type_id"`
	Type     string `json:"type"`
	Enabled  bool   `json:"enabled"`
	Codec    string `json:"codec"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Audio    bool   `json:"audio"`
	AltURL   bool   `json:"-"` // use StreamingProxy picture URL
}

// EventInfo describes one detection event subscription on a channel.
type EventInfo struct {
	ID            string   `json:"id"`
	ChannelID     int      `json:"channel_id"`
	IOPortID      int      `json:"io_port_id"`
	UniqueID      string   `json:"unique_id"`
	URL           string   `json:"-"` // detection-toggle document address
	Disabled      bool     `json:"disabled"`
	Notifications []string `json:"notifications"`
}

// Camera is one video channel of a device.
type Camera struct {
	ID             int          `json:"id"`
	Name           string       `json:"name"`
	Model          string       `json:"model"`
	SerialNo       string       `json:"serial_no"`
	Firmware       string       `json:"firmware,omitempty"`
	InputPort      int          `json:"input_port"`
	ConnectionType string       `json:"connection_type"`
	IPAddress      string       `json:"ip_addr,omitempty"`
	IPPort         int          `json:"ip_port,omitempty"`
	Streams        []StreamInfo `json:"streams"`
	Events         []EventInfo  `json:"events"`
}

// StorageDevice is one HDD or NAS volume attached to the device.
type StorageDevice struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Capacity  int64  `json:"capacity"`
	FreeSpace int64  `json:"freespace"`
	Property  string `json:"property"`
	IP        string `json:"ip,omitempty"`
}

// AlarmServer is the notification host configured on a device.
type AlarmServer struct {
	Address      string `json:"address"`
	PortNo       int    `json:"port_no"`
	URL          string `json:"url"`
	ProtocolType string `json:"protocol_type"`
}

// Alert is one parsed inbound EventNotificationAlert callback.
type Alert struct {
	ChannelID       int    `json:"channel_id"`
	IOPortID        int    `json:"io_port_id"`
	EventID         string `json:"event_id"`
	DeviceSerialNo  string `json:"device_serial_no,omitempty"`
	MACAddress      string `json:"mac_address,omitempty"`
	RegionID        int    `json:"region_id,omitempty"`
	DetectionTarget string `json:"detection_target,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
}

// MutexIssue names one already-armed event blocking an arm request.
type MutexIssue struct {
	EventID  string `json:"event_id"`
	Channels []int  `json:"channels"`
}
