// Package bridge owns the lifecycle of managed devices: bringing them
// up from the registry, pointing their alarm server at the gateway, and
// tearing them down cleanly again.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/hikbridge/internal/crypto"
	"github.com/technosupport/hikbridge/internal/data"
	"github.com/technosupport/hikbridge/internal/device"
	"github.com/technosupport/hikbridge/internal/isapi"
	"github.com/technosupport/hikbridge/internal/metrics"
)

var (
	ErrDeviceNotFound = errors.New("device not set up")
	ErrAlreadySetUp   = errors.New("device already set up")
)

// Registrar is the notification listener surface the manager drives.
type Registrar interface {
	Register(serialNo string)
	Deregister(serialNo string)
}

// StatePurger drops a device's entity state on teardown.
type StatePurger interface {
	Purge(ctx context.Context, serialNo string, uniqueIDs []string) error
}

// Handle is one live device: its registry entry, its client and its
// assembled model.
type Handle struct {
	Entry   *data.DeviceEntry
	Client  *isapi.Client
	Device  *device.Device
	Service *device.Service

	controlsAlarmServer bool
	revertOnce          sync.Once
}

// Config carries the manager's static settings.
type Config struct {
	// AlarmServerURL is the externally reachable base URL of this
	// gateway, pushed to devices that we manage the alarm server for.
	AlarmServerURL  string
	AlarmServerPath string
	Timeout         time.Duration
	Debug           bool
}

type Manager struct {
	cfg      Config
	repo     data.DeviceRepository
	creds    data.CredentialRepository
	keyring  *crypto.Keyring
	listener Registrar
	purger   StatePurger

	mu      sync.RWMutex
	handles map[uuid.UUID]*Handle
	pending map[uuid.UUID]struct{}
}

func NewManager(cfg Config, repo data.DeviceRepository, creds data.CredentialRepository, keyring *crypto.Keyring, listener Registrar, purger StatePurger) *Manager {
	if cfg.AlarmServerPath == "" {
		cfg.AlarmServerPath = "/api/hikvision"
	}
	return &Manager{
		cfg:      cfg,
		repo:     repo,
		creds:    creds,
		keyring:  keyring,
		listener: listener,
		purger:   purger,
		handles:  make(map[uuid.UUID]*Handle),
		pending:  make(map[uuid.UUID]struct{}),
	}
}

// SetupAll brings up every enabled registry entry. Devices come up one at
// a time; a failing device is logged and skipped, never fatal.
func (m *Manager) SetupAll(ctx context.Context) {
	entries, err := m.repo.ListEnabled(ctx)
	if err != nil {
		log.Printf("[ERROR] bridge: list devices: %v", err)
		return
	}
	for _, entry := range entries {
		if _, err := m.Setup(ctx, entry); err != nil {
			log.Printf("[ERROR] bridge: setup %s (%s): %v", entry.Name, entry.Host, err)
			m.markStatus(ctx, entry.ID, statusForError(err))
		}
	}
}

// Setup connects to a device, builds its model and starts routing its
// notifications.
func (m *Manager) Setup(ctx context.Context, entry *data.DeviceEntry) (*Handle, error) {
	// Reserve the id before any network call so a racing second Setup
	// of the same entry cannot overwrite the first handle.
	m.mu.Lock()
	_, exists := m.handles[entry.ID]
	if _, inFlight := m.pending[entry.ID]; exists || inFlight {
		m.mu.Unlock()
		return nil, ErrAlreadySetUp
	}
	m.pending[entry.ID] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, entry.ID)
		m.mu.Unlock()
	}()

	password, err := m.openPassword(ctx, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}

	client, err := isapi.New(isapi.Config{
		Host:      entry.Host,
		Username:  entry.Username,
		Password:  password,
		VerifySSL: entry.VerifySSL,
		Timeout:   m.cfg.Timeout,
		Debug:     m.cfg.Debug,
	})
	if err != nil {
		return nil, err
	}

	dev, err := device.Build(ctx, client)
	if err != nil {
		return nil, err
	}
	if entry.RTSPPort != 0 {
		dev.RTSPPort = entry.RTSPPort
	}

	h := &Handle{
		Entry:   entry,
		Client:  client,
		Device:  dev,
		Service: device.NewService(client, dev),
	}

	if entry.SetAlarmServer && dev.Capabilities.AlarmServer {
		if err := client.SetAlarmServer(ctx, m.alarmServerURL(entry), m.cfg.AlarmServerPath); err != nil {
			log.Printf("[WARN] bridge: alarm server on %s: %v", entry.Host, err)
		} else {
			h.controlsAlarmServer = true
		}
	}

	m.mu.Lock()
	m.handles[entry.ID] = h
	count := len(m.handles)
	m.mu.Unlock()

	m.listener.Register(dev.Info.SerialNo)
	metrics.DevicesManaged.Set(float64(count))

	if entry.SerialNo != dev.Info.SerialNo {
		entry.SerialNo = dev.Info.SerialNo
		if err := m.repo.Update(ctx, entry); err != nil {
			log.Printf("[WARN] bridge: persist serial for %s: %v", entry.Host, err)
		}
	}
	m.markStatus(ctx, entry.ID, "online")

	log.Printf("[DEBUG] bridge: %s up, %d cameras, %d device events",
		dev.Info.SerialNo, len(dev.Cameras), len(dev.Events))
	return h, nil
}

// Teardown releases a device. The alarm server is reverted to the null
// address exactly once, even when teardown is retried after a partial
// failure.
func (m *Manager) Teardown(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
	}
	count := len(m.handles)
	m.mu.Unlock()
	if !ok {
		return ErrDeviceNotFound
	}

	var revertErr error
	if h.controlsAlarmServer {
		h.revertOnce.Do(func() {
			revertErr = h.Client.ResetAlarmServer(ctx)
		})
	}

	m.listener.Deregister(h.Device.Info.SerialNo)
	metrics.DevicesManaged.Set(float64(count))

	if m.purger != nil {
		if err := m.purger.Purge(ctx, h.Device.Info.SerialNo, entityIDs(h.Device)); err != nil {
			log.Printf("[WARN] bridge: purge state for %s: %v", h.Device.Info.SerialNo, err)
		}
	}
	return revertErr
}

// TeardownAll is the shutdown path.
func (m *Manager) TeardownAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		if err := m.Teardown(ctx, id); err != nil {
			log.Printf("[WARN] bridge: teardown %s: %v", id, err)
		}
	}
}

func (m *Manager) Handle(id uuid.UUID) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[id]
	return h, ok
}

// Services implements the coordinator's device source.
func (m *Manager) Services() []*device.Service {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*device.Service, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, h.Service)
	}
	return out
}

// DeviceByIP attributes a notification callback to a managed device.
// Hosts configured by name are resolved so the comparison is always
// address against address.
func (m *Manager) DeviceByIP(ip string) *device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.handles {
		host := h.Client.Hostname()
		if host == ip {
			return h.Device
		}
		if net.ParseIP(host) == nil {
			if addrs, err := net.LookupHost(host); err == nil {
				for _, a := range addrs {
					if a == ip {
						return h.Device
					}
				}
			}
		}
	}
	return nil
}

func (m *Manager) DeviceBySerial(serialNo string) *device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.handles {
		if h.Device.Info.SerialNo == serialNo {
			return h.Device
		}
	}
	return nil
}

func (m *Manager) alarmServerURL(entry *data.DeviceEntry) string {
	if entry.AlarmServerURL != "" {
		return entry.AlarmServerURL
	}
	return m.cfg.AlarmServerURL
}

func (m *Manager) markStatus(ctx context.Context, id uuid.UUID, status string) {
	if err := m.repo.UpdateStatus(ctx, id, status); err != nil {
		log.Printf("[WARN] bridge: status update %s: %v", id, err)
	}
}

func statusForError(err error) string {
	switch {
	case errors.Is(err, isapi.ErrUnauthorized), errors.Is(err, isapi.ErrForbidden):
		return "auth_failed"
	default:
		return "offline"
	}
}

func entityIDs(dev *device.Device) []string {
	var ids []string
	for _, cam := range dev.Cameras {
		for _, ev := range cam.Events {
			ids = append(ids, ev.UniqueID)
		}
	}
	for _, ev := range dev.Events {
		ids = append(ids, ev.UniqueID)
	}
	return ids
}
