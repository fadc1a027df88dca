package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Compile-time check: *KeyringStore implements Store.
var _ Store = (*KeyringStore)(nil)

// KeyringStore reads secrets from the OS keyring (Secret Service, macOS
// Keychain or Windows Credential Manager).
type KeyringStore struct{}

// NewKeyringStore creates a KeyringStore.
func NewKeyringStore() *KeyringStore { return &KeyringStore{} }

// Lookup implements Store. Any keyring error other than a missing entry means
// the keyring itself is unusable, e.g. no D-Bus session.
func (s *KeyringStore) Lookup(_ context.Context, namespace, key string) (string, bool, error) {
	secret, err := keyring.Get(namespace, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: keyring: %v", ErrStoreUnavailable, err) //nolint:errorlint // backend detail only
	}
	return secret, true, nil
}

// Name implements Store.
func (s *KeyringStore) Name() string { return "keyring" }

// SetupHint implements Store.
func (s *KeyringStore) SetupHint(namespace, key string) []string {
	return []string{
		fmt.Sprintf("Linux:  secret-tool store --label='%s' service %s username %s", namespace, namespace, key),
		fmt.Sprintf("macOS:  security add-generic-password -U -s %s -a %s -w", namespace, key),
	}
}
