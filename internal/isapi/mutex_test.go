package isapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckMutex(t *testing.T) {
	var gotBody mutexFunctionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"MutexFunctionList": []map[string]any{
				{"mutexFunction": "linedetection", "channelID": []int{1, 2}},
			},
		})
	}))
	defer srv.Close()

	c, err := New(Config{Host: srv.URL, Username: "admin", Password: "secret"})
	assert.NoError(t, err)

	issues, err := c.CheckMutex(context.Background(), "motiondetection", 1)
	assert.NoError(t, err)
	// motion detection is queried under its AI alias
	assert.Equal(t, "VMDHumanVehicle", gotBody.Function)
	assert.Equal(t, 1, gotBody.ChannelID)
	assert.Len(t, issues, 1)
	assert.Equal(t, "linedetection", issues[0].EventID)
	assert.Equal(t, []int{1, 2}, issues[0].Channels)
}

func TestCheckMutexEmptyResponse(t *testing.T) {
	c, _ := newFixtureClient(t, map[string]string{
		"/ISAPI/System/mutexFunction": "",
	})
	issues, err := c.CheckMutex(context.Background(), "fielddetection", 2)
	assert.NoError(t, err)
	assert.Empty(t, issues)
}

func TestMutexErrorMessage(t *testing.T) {
	err := &MutexError{
		EventID: "linedetection",
		Issues: []MutexIssue{
			{EventID: "motiondetection", Channels: []int{1}},
		},
	}
	assert.Equal(t, "cannot enable Line Crossing events: disable Motion on channels [1] first", err.Error())
}

func TestMutexErrorUnknownIDs(t *testing.T) {
	err := &MutexError{EventID: "somethingodd"}
	assert.Equal(t, "cannot enable somethingodd events", err.Error())
}
