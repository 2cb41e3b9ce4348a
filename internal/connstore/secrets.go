package connstore

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// ErrSecretNotFound is returned when no secret exists for an alias.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore holds data source names outside the state store.
type SecretStore interface {
	Set(alias, secret string) error
	Get(alias string) (string, error)
	Delete(alias string) error
}

// Keyring stores secrets in the OS keyring under Service.
type Keyring struct {
	Service string
}

// NewKeyring returns a keyring-backed SecretStore.
func NewKeyring(service string) *Keyring {
	return &Keyring{Service: service}
}

// Set stores secret for alias.
func (k *Keyring) Set(alias, secret string) error {
	return keyring.Set(k.Service, alias, secret)
}

// Get retrieves the secret for alias.
func (k *Keyring) Get(alias string) (string, error) {
	secret, err := keyring.Get(k.Service, alias)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	return secret, err
}

// Delete removes the secret for alias. A missing secret is not an error.
func (k *Keyring) Delete(alias string) error {
	err := keyring.Delete(k.Service, alias)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
