// Package credentials resolves GitHub tokens from a secret store.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tilsley/prstage/apps/prstage/internal/config"
)

// Namespace is the service name tokens are stored under.
const Namespace = "github_token"

// ErrStoreUnavailable is wrapped by Lookup when the backend itself cannot be
// reached, as opposed to the key being absent.
var ErrStoreUnavailable = errors.New("secret store unavailable")

// Store looks up secrets by namespace and key.
type Store interface {
	// Lookup returns the secret and true, "" and false when no entry exists,
	// or an error wrapping ErrStoreUnavailable when the backend is unusable.
	Lookup(ctx context.Context, namespace, key string) (string, bool, error)
	// Name identifies the backend in messages.
	Name() string
	// SetupHint returns shell commands that install a secret for key.
	SetupHint(namespace, key string) []string
}

// Unavailable is the Store used when no backend is configured.
type Unavailable struct {
	Reason string
}

// Compile-time check: Unavailable implements Store.
var _ Store = Unavailable{}

// Lookup always fails with ErrStoreUnavailable.
func (u Unavailable) Lookup(context.Context, string, string) (string, bool, error) {
	if u.Reason == "" {
		return "", false, ErrStoreUnavailable
	}
	return "", false, fmt.Errorf("%w: %s", ErrStoreUnavailable, u.Reason)
}

// Name implements Store.
func (Unavailable) Name() string { return "none" }

// SetupHint implements Store.
func (Unavailable) SetupHint(string, string) []string {
	return []string{"configure a secret store with secrets.backend (keyring or redis)"}
}

// Open builds the Store selected by cfg. The returned close func releases
// backend connections and is never nil.
func Open(cfg config.Secrets) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendKeyring:
		return NewKeyringStore(), noop, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return NewRedisStore(rdb), rdb.Close, nil
	case config.BackendNone, "":
		return Unavailable{Reason: "secrets.backend is none"}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
}
