package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrCredentialNotFound = errors.New("credentials not found")
)

// DBTX is a common interface for *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DeviceEntry is one configured NVR, DVR or IP camera. Credentials live
// in device_credentials, never here.
type DeviceEntry struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Host           string     `json:"host"` // base URL, e.g. https://192.168.1.64
	Username       string     `json:"username"`
	VerifySSL      bool       `json:"verify_ssl"`
	RTSPPort       int        `json:"rtsp_port"` // 0 means read from the device
	SetAlarmServer bool       `json:"set_alarm_server"`
	AlarmServerURL string     `json:"alarm_server_url,omitempty"`
	IsEnabled      bool       `json:"is_enabled"`
	SerialNo       string     `json:"serial_no,omitempty"` // filled after first setup
	Status         string     `json:"status"`              // unknown, online, offline, auth_failed, error
	LastStatusAt   *time.Time `json:"last_status_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type DeviceFilter struct {
	IsEnabled *bool
	Status    *string
	Query     string // name or host
}

type DeviceRepository interface {
	Create(ctx context.Context, d *DeviceEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*DeviceEntry, error)
	List(ctx context.Context, filter DeviceFilter, limit, offset int) ([]*DeviceEntry, int, error)
	ListEnabled(ctx context.Context) ([]*DeviceEntry, error)
	Update(ctx context.Context, d *DeviceEntry) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CredentialRepository interface {
	Get(ctx context.Context, deviceID uuid.UUID) (*DeviceCredential, error)
	Upsert(ctx context.Context, c *DeviceCredential) error
	Delete(ctx context.Context, deviceID uuid.UUID) error
}
