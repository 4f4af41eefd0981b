// Package state keeps the live entity state of every managed device in
// Redis: which detections are armed, which alerts fired recently, and
// whether the device answered its last poll.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/technosupport/hikbridge/internal/notifications"
)

const DefaultAlertTTL = 15 * time.Second

type Store struct {
	client   *redis.Client
	alertTTL time.Duration
}

func NewStore(client *redis.Client, alertTTL time.Duration) *Store {
	if alertTTL == 0 {
		alertTTL = DefaultAlertTTL
	}
	return &Store{client: client, alertTTL: alertTTL}
}

func switchKey(uniqueID string) string { return "hb:switch:" + uniqueID }
func alertKey(uniqueID string) string  { return "hb:alert:" + uniqueID }
func availKey(serialNo string) string  { return "hb:avail:" + serialNo }

func snapshotKey(serialNo string, channelID int) string {
	return fmt.Sprintf("hb:snap:%s:%d", serialNo, channelID)
}

// SetSwitch records the armed flag of a detection entity.
func (s *Store) SetSwitch(ctx context.Context, uniqueID string, on bool) error {
	return s.client.Set(ctx, switchKey(uniqueID), boolVal(on), 0).Err()
}

func (s *Store) GetSwitch(ctx context.Context, uniqueID string) (bool, bool, error) {
	val, err := s.client.Get(ctx, switchKey(uniqueID)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

// SetAlert stores a fired alert under its entity id. The key expires on
// its own, which is what turns the alert entity back off when the device
// stops re-triggering.
func (s *Store) SetAlert(ctx context.Context, event *notifications.BridgeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return s.client.Set(ctx, alertKey(event.UniqueID), data, s.alertTTL).Err()
}

// GetAlert returns the active alert for an entity, or nil when the TTL
// has lapsed.
func (s *Store) GetAlert(ctx context.Context, uniqueID string) (*notifications.BridgeEvent, error) {
	data, err := s.client.Get(ctx, alertKey(uniqueID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var event notifications.BridgeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal alert: %w", err)
	}
	return &event, nil
}

// ActiveAlerts lists every alert currently inside its TTL window.
func (s *Store) ActiveAlerts(ctx context.Context) ([]*notifications.BridgeEvent, error) {
	var alerts []*notifications.BridgeEvent
	iter := s.client.Scan(ctx, 0, alertKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var event notifications.BridgeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		alerts = append(alerts, &event)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

// SetSnapshot keeps the latest still image of a channel so consumers can
// show a frame without touching the device.
func (s *Store) SetSnapshot(ctx context.Context, serialNo string, channelID int, image []byte) error {
	return s.client.Set(ctx, snapshotKey(serialNo, channelID), image, 0).Err()
}

func (s *Store) GetSnapshot(ctx context.Context, serialNo string, channelID int) ([]byte, error) {
	data, err := s.client.Get(ctx, snapshotKey(serialNo, channelID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

func (s *Store) SetAvailability(ctx context.Context, serialNo string, available bool) error {
	return s.client.Set(ctx, availKey(serialNo), boolVal(available), 0).Err()
}

func (s *Store) GetAvailability(ctx context.Context, serialNo string) (bool, error) {
	val, err := s.client.Get(ctx, availKey(serialNo)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

// Purge removes every key belonging to a device. Called on teardown so a
// removed device does not leave ghost entities behind.
func (s *Store) Purge(ctx context.Context, serialNo string, uniqueIDs []string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, availKey(serialNo))
	for _, id := range uniqueIDs {
		pipe.Del(ctx, switchKey(id), alertKey(id))
	}
	iter := s.client.Scan(ctx, 0, fmt.Sprintf("hb:snap:%s:*", serialNo), 100).Iterator()
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return err
}

func boolVal(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
