package isapi

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// GetAlarmServer reads the first configured notification host from
// Event/notification/httpHosts. A nil result with nil error means the
// device exposes no notification host list.
func (c *Client) GetAlarmServer(ctx context.Context) (*AlarmServer, error) {
	var list httpHostNotificationListXML
	if err := c.GetXML(ctx, "Event/notification/httpHosts", &list); err != nil {
		return nil, err
	}
	if len(list.Hosts) == 0 {
		return nil, nil
	}
	h := list.Hosts[0]
	address := h.IPAddress
	if h.AddressingFormatType == "hostname" {
		address = h.HostName
	}
	return &AlarmServer{
		Address:      address,
		PortNo:       h.PortNo,
		URL:          h.URL,
		ProtocolType: h.ProtocolType,
	}, nil
}

// SetAlarmServer points the device's notification host at baseURL+path.
// The write is skipped when the device already holds the same address.
func (c *Client) SetAlarmServer(ctx context.Context, baseURL, path string) error {
	target, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid alarm server url %q: %w", baseURL, err)
	}

	var list httpHostNotificationListXML
	if err := c.GetXML(ctx, "Event/notification/httpHosts", &list); err != nil {
		return err
	}
	if len(list.Hosts) == 0 {
		return nil
	}
	host := list.Hosts[0]

	port := portOrDefault(target)
	currentAddress := host.IPAddress
	if host.AddressingFormatType == "hostname" {
		currentAddress = host.HostName
	}
	if host.ProtocolType == strings.ToUpper(target.Scheme) &&
		currentAddress == target.Hostname() &&
		host.PortNo == port &&
		host.URL == path {
		return nil
	}

	host.URL = path
	host.ProtocolType = strings.ToUpper(target.Scheme)
	host.ParameterFormatType = "XML"
	host.PortNo = port
	host.HTTPAuthMethod = "none"
	if net.ParseIP(target.Hostname()) != nil {
		host.AddressingFormatType = "ipaddress"
		host.IPAddress = target.Hostname()
		host.HostName = ""
	} else {
		host.AddressingFormatType = "hostname"
		host.HostName = target.Hostname()
		host.IPAddress = ""
	}
	if host.ID == "" {
		host.ID = "1"
	}
	list.Hosts[0] = host

	return c.PutXML(ctx, "Event/notification/httpHosts", &list)
}

// ResetAlarmServer reverts the notification host to the null placeholder.
func (c *Client) ResetAlarmServer(ctx context.Context) error {
	return c.SetAlarmServer(ctx, NullAlarmServerURL, "/")
}

func portOrDefault(u *url.URL) int {
	if p := u.Port(); p != "" {
		var n int
		fmt.Sscanf(p, "%d", &n)
		return n
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}
