package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-character-chat-simulator/backend/pkg/config"
	"ai-character-chat-simulator/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// VaultManager reads secrets from a Vault KV v2 mount, falling back to the environment
// for keys Vault does not hold
type VaultManager struct {
	client   *vault.Client
	mount    string
	path     string
	fallback Manager
	log      *logger.Logger

	mu       sync.RWMutex
	cache    map[string]cachedSecret
	cacheTTL time.Duration
}

type cachedSecret struct {
	value   string
	expires time.Time
}

// New returns a VaultManager when Vault is enabled in cfg and an EnvManager otherwise
func New(cfg *config.Config, log *logger.Logger) (Manager, error) {
	if !cfg.Vault.Enabled {
		return NewEnvManager(nil), nil
	}
	m, err := NewVaultManager(cfg, NewEnvManager(nil), log)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewVaultManager creates a new Vault manager instance
func NewVaultManager(cfg *config.Config, fallback Manager, log *logger.Logger) (*VaultManager, error) {
	vc := cfg.Vault
	if vc.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if vc.Token == "" {
		return nil, ErrNoVaultToken
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = vc.Address
	vaultConfig.Timeout = vc.Timeout
	vaultConfig.MaxRetries = vc.MaxRetries

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(vc.Token)
	if vc.Namespace != "" {
		client.SetNamespace(vc.Namespace)
	}

	return &VaultManager{
		client:   client,
		mount:    vc.Mount,
		path:     vc.SecretsPath,
		fallback: fallback,
		log:      log.WithComponent("secrets"),
		cache:    make(map[string]cachedSecret),
		cacheTTL: vc.CacheTTL,
	}, nil
}

// GetSecret retrieves a secret from Vault, with fallback to the environment
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cached, found := m.cache[key]
	m.mu.RUnlock()
	if found && time.Now().Before(cached.expires) {
		return cached.value, nil
	}

	value, err := m.getFromVault(ctx, key)
	if errors.Is(err, ErrSecretNotFound) && m.fallback != nil {
		m.log.Warn("Secret not found in Vault, falling back to environment", "key", key)
		return m.fallback.GetSecret(ctx, key)
	}
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.cache[key] = cachedSecret{value: value, expires: time.Now().Add(m.cacheTTL)}
	m.mu.Unlock()
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		m.log.Warn("Failed to get secret, using default value",
			"key", key,
			"error", err.Error(),
		)
		return defaultValue
	}
	return value
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.mount).Get(ctx, m.path)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		m.log.Error("Failed to read secret from Vault",
			"mount", m.mount,
			"path", m.path,
			"error", err.Error(),
		)
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}
