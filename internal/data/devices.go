package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type DeviceModel struct {
	DB *sql.DB
}

const deviceColumns = `id, name, host, username, verify_ssl, rtsp_port, set_alarm_server, alarm_server_url, is_enabled, serial_no, status, last_status_at, created_at, updated_at`

func (m DeviceModel) Create(ctx context.Context, d *DeviceEntry) error {
	query := `
		INSERT INTO devices (name, host, username, verify_ssl, rtsp_port, set_alarm_server, alarm_server_url, is_enabled, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return m.DB.QueryRowContext(ctx, query,
		d.Name, d.Host, d.Username, d.VerifySSL, d.RTSPPort, d.SetAlarmServer, d.AlarmServerURL, d.IsEnabled, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (m DeviceModel) GetByID(ctx context.Context, id uuid.UUID) (*DeviceEntry, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1 AND deleted_at IS NULL`

	d, err := scanDevice(m.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	return d, err
}

func (m DeviceModel) List(ctx context.Context, filter DeviceFilter, limit, offset int) ([]*DeviceEntry, int, error) {
	where := "WHERE deleted_at IS NULL"
	args := []any{}
	nextArg := 1

	if filter.IsEnabled != nil {
		where += fmt.Sprintf(" AND is_enabled = $%d", nextArg)
		args = append(args, *filter.IsEnabled)
		nextArg++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", nextArg)
		args = append(args, *filter.Status)
		nextArg++
	}
	if filter.Query != "" {
		where += fmt.Sprintf(" AND (name ILIKE '%%' || $%d || '%%' OR host ILIKE '%%' || $%d || '%%')", nextArg, nextArg)
		args = append(args, filter.Query)
		nextArg++
	}

	var total int
	countQuery := "SELECT count(*) FROM devices " + where
	if err := m.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM devices %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		deviceColumns, where, nextArg, nextArg+1)
	args = append(args, limit, offset)

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var devices []*DeviceEntry
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		devices = append(devices, d)
	}
	return devices, total, rows.Err()
}

// ListEnabled is for startup and background jobs.
func (m DeviceModel) ListEnabled(ctx context.Context) ([]*DeviceEntry, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE is_enabled = true AND deleted_at IS NULL ORDER BY created_at`

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*DeviceEntry
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (m DeviceModel) Update(ctx context.Context, d *DeviceEntry) error {
	query := `
		UPDATE devices
		SET name = $1, host = $2, username = $3, verify_ssl = $4, rtsp_port = $5,
		    set_alarm_server = $6, alarm_server_url = $7, is_enabled = $8, serial_no = $9, updated_at = NOW()
		WHERE id = $10 AND deleted_at IS NULL
		RETURNING updated_at`

	err := m.DB.QueryRowContext(ctx, query,
		d.Name, d.Host, d.Username, d.VerifySSL, d.RTSPPort,
		d.SetAlarmServer, d.AlarmServerURL, d.IsEnabled, d.SerialNo, d.ID,
	).Scan(&d.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrRecordNotFound
	}
	return err
}

func (m DeviceModel) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE devices SET status = $1, last_status_at = NOW(), updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	res, err := m.DB.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (m DeviceModel) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE devices SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := m.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*DeviceEntry, error) {
	var d DeviceEntry
	var lastStatus sql.NullTime
	var serialNo sql.NullString
	err := row.Scan(
		&d.ID, &d.Name, &d.Host, &d.Username, &d.VerifySSL, &d.RTSPPort, &d.SetAlarmServer,
		&d.AlarmServerURL, &d.IsEnabled, &serialNo, &d.Status, &lastStatus, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if serialNo.Valid {
		d.SerialNo = serialNo.String
	}
	if lastStatus.Valid {
		d.LastStatusAt = &lastStatus.Time
	}
	return &d, nil
}
