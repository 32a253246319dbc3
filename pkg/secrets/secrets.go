// Package secrets resolves credentials from Vault with an environment fallback.
package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// EnvKey maps a secret key to its environment variable: api_key and api-key become API_KEY
func EnvKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// EnvManager reads secrets from the environment only
type EnvManager struct {
	lookup func(string) (string, bool)
}

// NewEnvManager creates a manager over lookup; os.LookupEnv when nil
func NewEnvManager(lookup func(string) (string, bool)) *EnvManager {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvManager{lookup: lookup}
}

// GetSecret returns the environment value for key, ErrSecretNotFound when unset or blank
func (m *EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	v, ok := m.lookup(EnvKey(key))
	if !ok || strings.TrimSpace(v) == "" {
		return "", ErrSecretNotFound
	}
	return v, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	v, err := m.GetSecret(ctx, key)
	if err != nil {
		return defaultValue
	}
	return v
}
