package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeviceCredential holds the device account password, envelope encrypted:
// the password is sealed under a per-device DEK, and the DEK is sealed
// under the active master key.
type DeviceCredential struct {
	ID             uuid.UUID
	DeviceID       uuid.UUID
	MasterKID      string
	DEKNonce       []byte
	DEKCiphertext  []byte
	DEKTag         []byte
	DataNonce      []byte
	DataCiphertext []byte
	DataTag        []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CredentialModel struct {
	DB *sql.DB
}

func (m CredentialModel) Get(ctx context.Context, deviceID uuid.UUID) (*DeviceCredential, error) {
	query := `
		SELECT id, device_id, master_kid,
		       dek_nonce, dek_ciphertext, dek_tag,
		       data_nonce, data_ciphertext, data_tag,
		       created_at, updated_at
		FROM device_credentials
		WHERE device_id = $1
	`
	var c DeviceCredential
	err := m.DB.QueryRowContext(ctx, query, deviceID).Scan(
		&c.ID, &c.DeviceID, &c.MasterKID,
		&c.DEKNonce, &c.DEKCiphertext, &c.DEKTag,
		&c.DataNonce, &c.DataCiphertext, &c.DataTag,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (m CredentialModel) Upsert(ctx context.Context, c *DeviceCredential) error {
	query := `
		INSERT INTO device_credentials (
			device_id, master_kid,
			dek_nonce, dek_ciphertext, dek_tag,
			data_nonce, data_ciphertext, data_tag,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (device_id) DO UPDATE SET
			master_kid = EXCLUDED.master_kid,
			dek_nonce = EXCLUDED.dek_nonce,
			dek_ciphertext = EXCLUDED.dek_ciphertext,
			dek_tag = EXCLUDED.dek_tag,
			data_nonce = EXCLUDED.data_nonce,
			data_ciphertext = EXCLUDED.data_ciphertext,
			data_tag = EXCLUDED.data_tag,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return m.DB.QueryRowContext(ctx, query,
		c.DeviceID, c.MasterKID,
		c.DEKNonce, c.DEKCiphertext, c.DEKTag,
		c.DataNonce, c.DataCiphertext, c.DataTag,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (m CredentialModel) Delete(ctx context.Context, deviceID uuid.UUID) error {
	query := `DELETE FROM device_credentials WHERE device_id = $1`
	res, err := m.DB.ExecContext(ctx, query, deviceID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrCredentialNotFound
	}
	return nil
}
