package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/technosupport/hikbridge/internal/crypto"
	"github.com/technosupport/hikbridge/internal/data"
)

func credentialAAD(deviceID uuid.UUID) []byte {
	return []byte(deviceID.String() + ":device_credential_v1")
}

// SealPassword envelope-encrypts the device account password and stores
// it for the entry.
func (m *Manager) SealPassword(ctx context.Context, deviceID uuid.UUID, password string) error {
	dek, err := crypto.GenerateDEK()
	if err != nil {
		return err
	}
	aad := credentialAAD(deviceID)

	dataNonce, dataCipher, dataTag, err := crypto.EncryptGCM(dek, []byte(password), aad)
	if err != nil {
		return err
	}
	kid, dekNonce, dekCipher, dekTag, err := m.keyring.WrapDEK(dek, aad)
	if err != nil {
		return err
	}

	return m.creds.Upsert(ctx, &data.DeviceCredential{
		DeviceID:       deviceID,
		MasterKID:      kid,
		DEKNonce:       dekNonce,
		DEKCiphertext:  dekCipher,
		DEKTag:         dekTag,
		DataNonce:      dataNonce,
		DataCiphertext: dataCipher,
		DataTag:        dataTag,
	})
}

func (m *Manager) openPassword(ctx context.Context, deviceID uuid.UUID) (string, error) {
	cred, err := m.creds.Get(ctx, deviceID)
	if err != nil {
		return "", err
	}
	aad := credentialAAD(deviceID)

	dek, err := m.keyring.UnwrapDEK(cred.MasterKID, cred.DEKNonce, cred.DEKCiphertext, cred.DEKTag, aad)
	if err != nil {
		return "", fmt.Errorf("unwrap DEK: %w", err)
	}
	password, err := crypto.DecryptGCM(dek, cred.DataNonce, cred.DataCiphertext, cred.DataTag, aad)
	if err != nil {
		return "", fmt.Errorf("open password: %w", err)
	}
	return string(password), nil
}
