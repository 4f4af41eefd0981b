package isapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// MutexError reports an arm request that conflicts with an already armed,
// mutually exclusive event type on the same channel.
type MutexError struct {
	EventID string
	Issues  []MutexIssue
}

func (e *MutexError) Error() string {
	label := Events[e.EventID].Label
	if label == "" {
		label = e.EventID
	}
	if len(e.Issues) == 0 {
		return fmt.Sprintf("cannot enable %s events", label)
	}
	blocking := Events[e.Issues[0].EventID].Label
	if blocking == "" {
		blocking = e.Issues[0].EventID
	}
	chans := make([]string, 0, len(e.Issues[0].Channels))
	for _, ch := range e.Issues[0].Channels {
		chans = append(chans, fmt.Sprint(ch))
	}
	return fmt.Sprintf("cannot enable %s events: disable %s on channels [%s] first",
		label, blocking, strings.Join(chans, ", "))
}

type mutexFunctionRequest struct {
	Function  string `json:"function"`
	ChannelID int    `json:"channelID"`
}

type mutexFunctionResponse struct {
	MutexFunctionList []struct {
		MutexFunction string `json:"mutexFunction"`
		ChannelID     []int  `json:"channelID"`
	} `json:"MutexFunctionList"`
}

// CheckMutex asks the device which armed event types conflict with arming
// eventID on channelID. An empty result means arming is safe. Devices
// without mutex checking support should not be queried; callers gate on
// Capabilities.EventMutexChecking.
func (c *Client) CheckMutex(ctx context.Context, eventID string, channelID int) ([]MutexIssue, error) {
	body, err := json.Marshal(mutexFunctionRequest{
		Function:  MutexFunctionID(eventID),
		ChannelID: channelID,
	})
	if err != nil {
		return nil, err
	}

	data, err := c.Do(ctx, http.MethodPost, "System/mutexFunction?format=json", body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var resp mutexFunctionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode mutexFunction response: %w", err)
	}

	var issues []MutexIssue
	for _, item := range resp.MutexFunctionList {
		issues = append(issues, MutexIssue{
			EventID:  NormalizeEventID(item.MutexFunction),
			Channels: item.ChannelID,
		})
	}
	return issues, nil
}
