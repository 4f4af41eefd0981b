package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/technosupport/hikbridge/internal/notifications"
	"github.com/technosupport/hikbridge/internal/state"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestSwitchState(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := state.NewStore(rdb, 0)
	ctx := context.Background()

	on, known, err := s.GetSwitch(ctx, "dev_1_motiondetection")
	assert.NoError(t, err)
	assert.False(t, known)
	assert.False(t, on)

	assert.NoError(t, s.SetSwitch(ctx, "dev_1_motiondetection", true))
	on, known, err = s.GetSwitch(ctx, "dev_1_motiondetection")
	assert.NoError(t, err)
	assert.True(t, known)
	assert.True(t, on)
}

func TestAlertExpires(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	s := state.NewStore(rdb, 10*time.Second)
	ctx := context.Background()

	event := &notifications.BridgeEvent{
		UniqueID:       "dev_1_motiondetection",
		EventType:      "motiondetection",
		DeviceSerialNo: "dev",
		ChannelID:      1,
	}
	assert.NoError(t, s.SetAlert(ctx, event))

	got, err := s.GetAlert(ctx, event.UniqueID)
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "motiondetection", got.EventType)

	mr.FastForward(11 * time.Second)

	got, err = s.GetAlert(ctx, event.UniqueID)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestActiveAlerts(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := state.NewStore(rdb, time.Minute)
	ctx := context.Background()

	assert.NoError(t, s.SetAlert(ctx, &notifications.BridgeEvent{UniqueID: "a_1_io"}))
	assert.NoError(t, s.SetAlert(ctx, &notifications.BridgeEvent{UniqueID: "b_2_linedetection"}))

	alerts, err := s.ActiveAlerts(ctx)
	assert.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestSnapshotRoundtrip(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := state.NewStore(rdb, time.Minute)
	ctx := context.Background()

	got, err := s.GetSnapshot(ctx, "DS-7608", 1)
	assert.NoError(t, err)
	assert.Nil(t, got)

	img := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01}
	assert.NoError(t, s.SetSnapshot(ctx, "DS-7608", 1, img))

	got, err = s.GetSnapshot(ctx, "DS-7608", 1)
	assert.NoError(t, err)
	assert.Equal(t, img, got)

	assert.NoError(t, s.Purge(ctx, "DS-7608", nil))
	got, err = s.GetSnapshot(ctx, "DS-7608", 1)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestAvailabilityAndPurge(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := state.NewStore(rdb, time.Minute)
	ctx := context.Background()

	assert.NoError(t, s.SetAvailability(ctx, "DS-7608", true))
	ok, err := s.GetAvailability(ctx, "DS-7608")
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, s.SetSwitch(ctx, "ds_7608_1_motiondetection", true))
	assert.NoError(t, s.Purge(ctx, "DS-7608", []string{"ds_7608_1_motiondetection"}))

	ok, err = s.GetAvailability(ctx, "DS-7608")
	assert.NoError(t, err)
	assert.False(t, ok)
	_, known, err := s.GetSwitch(ctx, "ds_7608_1_motiondetection")
	assert.NoError(t, err)
	assert.False(t, known)
}
