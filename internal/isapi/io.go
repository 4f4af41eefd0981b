package isapi

import (
	"context"
	"encoding/xml"
	"fmt"
)

// GetIOPortStatus returns the state ("active"/"inactive") of a physical
// input or output port.
func (c *Client) GetIOPortStatus(ctx context.Context, portType string, portNo int) (string, error) {
	path := fmt.Sprintf("System/IO/inputs/%d/status", portNo)
	if portType == "output" {
		path = fmt.Sprintf("System/IO/outputs/%d/status", portNo)
	}
	var st ioPortStatusXML
	if err := c.GetXML(ctx, path, &st); err != nil {
		return "", err
	}
	return st.IOState, nil
}

// SetOutputPort drives a relay output high or low.
func (c *Client) SetOutputPort(ctx context.Context, portNo int, on bool) error {
	state := "low"
	if on {
		state = "high"
	}
	doc := ioPortDataXML{OutputState: state}
	return c.PutXML(ctx, fmt.Sprintf("System/IO/outputs/%d/trigger", portNo), &doc)
}

type holidayXML struct {
	ID          int    `xml:"id"`
	Name        string `xml:"holidayName"`
	Enabled     string `xml:"enabled"`
	HolidayMode string `xml:"holidayMode"`
	HolidayDate *struct {
		StartDate string `xml:"startDate"`
		EndDate   string `xml:"endDate"`
	} `xml:"holidayDate"`
}

type holidayListXML struct {
	XMLName  xml.Name     `xml:"HolidayList"`
	Holidays []holidayXML `xml:"holiday"`
}

// GetHolidayEnabled reads the state of the first holiday slot. Devices use
// the holiday schedule as a global "holiday mode" toggle.
func (c *Client) GetHolidayEnabled(ctx context.Context) (bool, error) {
	var list holidayListXML
	if err := c.GetXML(ctx, "System/Holidays", &list); err != nil {
		return false, err
	}
	if len(list.Holidays) == 0 {
		return false, fmt.Errorf("device reports no holiday slots")
	}
	return strToBool(list.Holidays[0].Enabled), nil
}

// SetHolidayEnabled toggles the first holiday slot. Enabling sets the span
// to one year starting today so the mode stays on until switched off.
func (c *Client) SetHolidayEnabled(ctx context.Context, enable bool, today string, nextYear string) error {
	var list holidayListXML
	if err := c.GetXML(ctx, "System/Holidays", &list); err != nil {
		return err
	}
	if len(list.Holidays) == 0 {
		return fmt.Errorf("device reports no holiday slots")
	}
	h := &list.Holidays[0]
	if strToBool(h.Enabled) == enable {
		return nil
	}
	h.Enabled = boolToStr(enable)
	if enable {
		h.HolidayMode = "date"
		h.HolidayDate = &struct {
			StartDate string `xml:"startDate"`
			EndDate   string `xml:"endDate"`
		}{StartDate: today, EndDate: nextYear}
	}
	return c.PutXML(ctx, "System/Holidays", &list)
}
