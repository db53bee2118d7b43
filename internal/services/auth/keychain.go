package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ErrNoCloud is returned when a keychain call names no cloud.
var ErrNoCloud = errors.New("cloud name is required")

// KeyringStore keeps one keychain entry per cloud under a single service.
// Entries are named "<cloud>/password" with the cloud name normalized, so
// "MyCloud" and "mycloud " share an entry.
type KeyringStore struct {
	serviceName string
}

func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

func passwordEntry(cloud string) (string, error) {
	key := NormalizeCloud(cloud)
	if key == "" {
		return "", ErrNoCloud
	}
	return key + "/password", nil
}

func (k *KeyringStore) SetPassword(cloud string, password string) error {
	entry, err := passwordEntry(cloud)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("empty password for cloud %q", cloud)
	}
	if err := keyring.Set(k.serviceName, entry, password); err != nil {
		return fmt.Errorf("keychain: store %s: %w", entry, err)
	}
	return nil
}

func (k *KeyringStore) GetPassword(cloud string) (string, error) {
	entry, err := passwordEntry(cloud)
	if err != nil {
		return "", err
	}
	password, err := keyring.Get(k.serviceName, entry)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", fmt.Errorf("%w for %q", ErrPasswordNotFound, NormalizeCloud(cloud))
	case err != nil:
		return "", fmt.Errorf("keychain: read %s: %w", entry, err)
	}
	return password, nil
}

// DeletePassword removes the entry; a missing entry is ErrPasswordNotFound
// so logout can tell the user nothing was stored.
func (k *KeyringStore) DeletePassword(cloud string) error {
	entry, err := passwordEntry(cloud)
	if err != nil {
		return err
	}
	err = keyring.Delete(k.serviceName, entry)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%w for %q", ErrPasswordNotFound, NormalizeCloud(cloud))
	case err != nil:
		return fmt.Errorf("keychain: delete %s: %w", entry, err)
	}
	return nil
}
