package isapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// GetDeviceInfo fetches System/deviceInfo.
func (c *Client) GetDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var d deviceInfoXML
	if err := c.GetXML(ctx, "System/deviceInfo", &d); err != nil {
		return DeviceInfo{}, err
	}
	manufacturer := d.Manufacturer
	if manufacturer == "" {
		manufacturer = "Hikvision"
	}
	manufacturer = strings.ToUpper(manufacturer[:1]) + strings.ToLower(manufacturer[1:])
	return DeviceInfo{
		Name:         d.DeviceName,
		Manufacturer: manufacturer,
		Model:        d.Model,
		SerialNo:     d.SerialNumber,
		Firmware:     d.FirmwareVersion,
		MACAddress:   d.MacAddress,
		IPAddress:    c.base.Hostname(),
		DeviceType:   d.DeviceType,
	}, nil
}

// GetCapabilities fetches System/capabilities and decodes the capability
// flags with explicit defaults. Missing or malformed fields decode to their
// zero defaults and never fail the call.
func (c *Client) GetCapabilities(ctx context.Context) (Capabilities, error) {
	var raw capabilitiesXML
	if err := c.GetXML(ctx, "System/capabilities", &raw); err != nil {
		return Capabilities{}, err
	}
	return Capabilities{
		AnalogCameras:        raw.SysCap.VideoCap.VideoInputPortNums,
		DigitalCameras:       raw.RacmCap.InputProxyNums,
		HolidayMode:          strToBool(raw.SysCap.IsSupportHoliday),
		ChannelZero:          strToBool(raw.RacmCap.IsSupportZeroChan),
		EventMutexChecking:   strToBool(raw.IsSupportMutexErrMsg),
		PIR:                  strToBool(raw.WLAlarmCap.IsSupportPIR),
		SceneChangeDetection: strToBool(raw.SmartCap.IsSupportSceneChangeDetection),
		InputPorts:           raw.SysCap.IOCap.IOInputPortNums,
		OutputPorts:          raw.SysCap.IOCap.IOOutputPortNums,
	}, nil
}

// ProxiedChannel is one IP channel attached to an NVR.
type ProxiedChannel struct {
	ID       int
	Name     string
	Model    string
	SerialNo string
	Firmware string
	Port     int
	IP       string
	IPPort   int
}

// ListProxiedChannels fetches ContentMgmt/InputProxy/channels. Channels
// without a source descriptor are skipped; serial numbers missing on the
// wire are generated from protocol and address so entity ids stay stable.
func (c *Client) ListProxiedChannels(ctx context.Context) ([]ProxiedChannel, error) {
	var list inputProxyChannelListXML
	if err := c.GetXML(ctx, "ContentMgmt/InputProxy/channels", &list); err != nil {
		return nil, err
	}

	var out []ProxiedChannel
	for _, ch := range list.Channels {
		if ch.Source == nil {
			continue
		}
		serial := ch.Source.SerialNumber
		if serial == "" {
			serial = ch.Source.ProxyProtocol + strings.ReplaceAll(ch.Source.IPAddress, ".", "")
		}
		model := ch.Source.Model
		if model == "" {
			model = "Unknown"
		}
		out = append(out, ProxiedChannel{
			ID:       ch.ID,
			Name:     ch.Name,
			Model:    model,
			SerialNo: serial,
			Firmware: ch.Source.FirmwareVersion,
			Port:     ch.Source.SrcInputPort,
			IP:       ch.Source.IPAddress,
			IPPort:   ch.Source.ManagePortNo,
		})
	}
	return out, nil
}

// AnalogChannel is one direct video input of a DVR.
type AnalogChannel struct {
	ID        int
	Name      string
	InputPort int
	ResDesc   string
}

// ListAnalogChannels fetches System/Video/inputs/channels.
func (c *Client) ListAnalogChannels(ctx context.Context) ([]AnalogChannel, error) {
	var list videoInputChannelListXML
	if err := c.GetXML(ctx, "System/Video/inputs/channels", &list); err != nil {
		return nil, err
	}
	out := make([]AnalogChannel, 0, len(list.Channels))
	for _, ch := range list.Channels {
		out = append(out, AnalogChannel{
			ID:        ch.ID,
			Name:      ch.Name,
			InputPort: ch.InputPort,
			ResDesc:   ch.ResDesc,
		})
	}
	return out, nil
}

// GetStreams probes the stream profiles of one channel. Stream ids follow
// the vendor convention <channel>0<type>, e.g. 101 for channel 1 main
// stream. Missing profiles are skipped silently.
func (c *Client) GetStreams(ctx context.Context, channelID int) ([]StreamInfo, error) {
	var streams []StreamInfo
	for typeID := 1; typeID <= 4; typeID++ {
		streamID := channelID*100 + typeID
		var s streamingChannelXML
		if err := c.GetXML(ctx, fmt.Sprintf("Streaming/channels/%d", streamID), &s); err != nil {
			continue
		}
		if s.ID == 0 {
			continue
		}
		streams = append(streams, StreamInfo{
			ID:      s.ID,
			Name:    s.ChannelName,
			TypeID:  typeID,
			Type:    StreamTypes[typeID],
			Enabled: s.Enabled,
			Codec:   s.Video.VideoCodecType,
			Width:   s.Video.VideoResolutionWidth,
			Height:  s.Video.VideoResolutionHeight,
			Audio:   strToBool(s.Audio.Enabled),
		})
	}
	return streams, nil
}

// GetRTSPPort reads the RTSP port from Security/adminAccesses, falling
// back to 554 when the protocol list does not advertise one.
func (c *Client) GetRTSPPort(ctx context.Context) int {
	var list adminAccessProtocolListXML
	if err := c.GetXML(ctx, "Security/adminAccesses", &list); err != nil {
		return DefaultRTSPPort
	}
	for _, p := range list.Protocols {
		if p.Protocol == "RTSP" && p.PortNo > 0 {
			return p.PortNo
		}
	}
	return DefaultRTSPPort
}

// GetStorage fetches ContentMgmt/Storage and flattens HDD and NAS entries.
func (c *Client) GetStorage(ctx context.Context) ([]StorageDevice, error) {
	var s storageXML
	if err := c.GetXML(ctx, "ContentMgmt/Storage", &s); err != nil {
		return nil, err
	}
	var out []StorageDevice
	for _, h := range s.HDDList.HDDs {
		out = append(out, StorageDevice{
			ID:        h.ID,
			Name:      h.HDDName,
			Type:      h.HDDType,
			Status:    h.Status,
			Capacity:  h.Capacity,
			FreeSpace: h.FreeSpace,
			Property:  h.Property,
		})
	}
	for _, n := range s.NASList.NAS {
		out = append(out, StorageDevice{
			ID:        n.ID,
			Name:      n.Path,
			Type:      n.NASType,
			Status:    n.Status,
			Capacity:  n.Capacity,
			FreeSpace: n.FreeSpace,
			Property:  n.Property,
			IP:        n.IPAddress,
		})
	}
	return out, nil
}

// Reboot restarts the device.
func (c *Client) Reboot(ctx context.Context) error {
	_, err := c.Do(ctx, "PUT", "System/reboot", nil)
	return err
}

// RTSPSource returns the credentialed RTSP URL of a stream. Callers must
// not log the result.
func (c *Client) RTSPSource(stream StreamInfo, rtspPort int) string {
	return fmt.Sprintf("rtsp://%s:%s@%s:%d/Streaming/channels/%d",
		urlQuote(c.cfg.Username), urlQuote(c.cfg.Password), c.base.Hostname(), rtspPort, stream.ID)
}

func urlQuote(s string) string {
	return url.QueryEscape(s)
}

func strToBool(v string) bool {
	return strings.EqualFold(v, "true")
}

func boolToStr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
