// Package auth stores cloud passwords in the OS keychain so clouds.yaml
// can omit them.
package auth

import (
	"errors"

	"nathanbeddoewebdev/stackgate/internal/util"
)

const ServiceName = "stackgate"

var ErrPasswordNotFound = errors.New("cloud password not found")

type Store interface {
	SetPassword(cloud string, password string) error
	GetPassword(cloud string) (string, error)
	DeletePassword(cloud string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeCloud normalizes a cloud profile name for consistent key lookup.
func NormalizeCloud(cloud string) string {
	return util.NormalizeKey(cloud)
}
