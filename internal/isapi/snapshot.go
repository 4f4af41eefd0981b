package isapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
)

const snapshotMaxAttempts = 3

// GetSnapshot fetches a still image from a stream. Some cameras reject the
// regular picture URL with ISAPI status 6 ("Invalid XML Content") and only
// serve stills through the streaming proxy; the client remembers that per
// stream. Status 3 ("Device Error") is retried a bounded number of times.
func (c *Client) GetSnapshot(ctx context.Context, stream *StreamInfo, width, height int) ([]byte, error) {
	params := url.Values{}
	if width == 0 || width > 100 {
		params.Set("videoResolutionWidth", fmt.Sprint(stream.Width))
		params.Set("videoResolutionHeight", fmt.Sprint(stream.Height))
	}

	for attempt := 0; attempt < snapshotMaxAttempts; attempt++ {
		path := fmt.Sprintf("Streaming/channels/%d/picture", stream.ID)
		if stream.AltURL {
			path = fmt.Sprintf("ContentMgmt/StreamingProxy/channels/%d/picture", stream.ID)
		}
		if len(params) > 0 {
			path += "?" + params.Encode()
		}

		data, err := c.Do(ctx, "GET", path, nil)
		if err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(data, []byte("<?xml ")) {
			return data, nil
		}

		// The device answered with a ResponseStatus instead of a JPEG.
		var rs responseStatusXML
		if err := xml.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("snapshot stream %d: unexpected XML response", stream.ID)
		}
		switch {
		case rs.StatusCode == 6 && !stream.AltURL:
			stream.AltURL = true
		case rs.StatusCode == 3:
			// retry
		default:
			return nil, fmt.Errorf("snapshot stream %d: device status %d (%s)", stream.ID, rs.StatusCode, rs.StatusString)
		}
	}
	return nil, fmt.Errorf("snapshot stream %d: giving up after %d attempts", stream.ID, snapshotMaxAttempts)
}
