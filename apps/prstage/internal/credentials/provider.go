package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tilsley/prstage/apps/prstage/internal/config"
)

// CredentialStoreUnavailableError is returned when the secret store cannot be
// consulted at all.
type CredentialStoreUnavailableError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e CredentialStoreUnavailableError) Error() string {
	return fmt.Sprintf("failed to obtain GitHub token: %s secret store is not available: %v", e.Backend, e.Err)
}

// Unwrap returns the backend error.
func (e CredentialStoreUnavailableError) Unwrap() error { return e.Err }

// Provider resolves per-user GitHub tokens.
type Provider struct {
	store     Store
	namespace string
	log       *slog.Logger
}

// NewProvider creates a Provider reading tokens from store under Namespace.
func NewProvider(store Store, log *slog.Logger) *Provider {
	return &Provider{store: store, namespace: Namespace, log: log}
}

// ResolveToken looks up the token for user. A missing entry is not an error:
// the secret is empty and the message explains how to install one.
func (p *Provider) ResolveToken(ctx context.Context, user string) (config.Secret, string, error) {
	if user == "" {
		return "", "", errors.New("resolve GitHub token: no user given (set github.user or GITHUB_USER)")
	}

	token, found, err := p.store.Lookup(ctx, p.namespace, user)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return "", "", CredentialStoreUnavailableError{Backend: p.store.Name(), Err: err}
		}
		return "", "", fmt.Errorf("resolve GitHub token for %s: %w", user, err)
	}

	if !found || token == "" {
		lines := []string{
			fmt.Sprintf("Failed to obtain GitHub token for user %s from %s.", user, p.store.Name()),
			"Use the following procedure to install a GitHub token:",
		}
		for _, hint := range p.store.SetupHint(p.namespace, user) {
			lines = append(lines, "  "+hint)
		}
		return "", strings.Join(lines, "\n"), nil
	}

	p.log.Debug("resolved GitHub token", "user", user, "store", p.store.Name())
	return config.Secret(token), fmt.Sprintf("Successfully obtained GitHub token for user %s from %s.", user, p.store.Name()), nil
}
