package config

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/mstgnz/gomerchant/infra/logger"
)

// ErrConfigNotFound is returned when an account has no credentials for a gateway
var ErrConfigNotFound = errors.New("configuration not found")

// Store persists account configurations; SQLiteStorage is the production implementation
type Store interface {
	SaveAccountConfig(account, gatewayName string, config map[string]string) error
	LoadAccountConfig(account, gatewayName string) (map[string]string, error)
	LoadAllAccountConfigs() (map[string]map[string]string, error)
	DeleteAccountConfig(account, gatewayName string) error
}

// AccountKey is the map key of an account's credentials for one gateway
func AccountKey(account, gatewayName string) string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(account), strings.ToLower(gatewayName))
}

// AccountConfig manages per-account gateway credentials in memory, backed by an optional Store
type AccountConfig struct {
	configs map[string]map[string]string
	storage Store
	mu      sync.RWMutex
}

// NewAccountConfig creates the manager and preloads everything the store holds; storage may be nil
func NewAccountConfig(storage Store) *AccountConfig {
	config := &AccountConfig{
		configs: make(map[string]map[string]string),
		storage: storage,
	}

	if storage == nil {
		logger.Warn("Account storage not available, using memory-only mode")
		return config
	}

	if err := config.load(); err != nil {
		logger.Warn("Failed to load account configurations", logger.LogContext{Fields: map[string]any{"error": err.Error()}})
	}
	return config
}

func (c *AccountConfig) load() error {
	configs, err := c.storage.LoadAllAccountConfigs()
	if err != nil {
		return fmt.Errorf("failed to load configs from storage: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	maps.Copy(c.configs, configs)
	return nil
}

// SetConfig stores the credentials of an account for one gateway
func (c *AccountConfig) SetConfig(account, gatewayName string, config map[string]string) error {
	if account == "" {
		return errors.New("account cannot be empty")
	}
	if gatewayName == "" {
		return errors.New("gateway name cannot be empty")
	}
	if len(config) == 0 {
		return errors.New("config cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.SaveAccountConfig(account, gatewayName, config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	c.configs[AccountKey(account, gatewayName)] = maps.Clone(config)
	return nil
}

// GetConfig returns a copy of the credentials of an account for one gateway
func (c *AccountConfig) GetConfig(account, gatewayName string) (map[string]string, error) {
	if account == "" {
		return nil, errors.New("account cannot be empty")
	}

	key := AccountKey(account, gatewayName)

	c.mu.RLock()
	config, exists := c.configs[key]
	c.mu.RUnlock()

	if !exists && c.storage != nil {
		stored, err := c.storage.LoadAccountConfig(account, gatewayName)
		if err == nil {
			c.mu.Lock()
			c.configs[key] = stored
			c.mu.Unlock()
			config, exists = stored, true
		} else if !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
	}

	if !exists {
		return nil, fmt.Errorf("account %s, gateway %s: %w", account, gatewayName, ErrConfigNotFound)
	}

	return maps.Clone(config), nil
}

// DeleteConfig removes the credentials of an account for one gateway
func (c *AccountConfig) DeleteConfig(account, gatewayName string) error {
	if account == "" {
		return errors.New("account cannot be empty")
	}
	if gatewayName == "" {
		return errors.New("gateway name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := AccountKey(account, gatewayName)
	if c.storage != nil {
		if err := c.storage.DeleteAccountConfig(account, gatewayName); err != nil {
			if !errors.Is(err, ErrConfigNotFound) {
				return fmt.Errorf("failed to delete config: %w", err)
			}
			if _, ok := c.configs[key]; !ok {
				return err
			}
		}
	} else if _, ok := c.configs[key]; !ok {
		return fmt.Errorf("account %s, gateway %s: %w", account, gatewayName, ErrConfigNotFound)
	}

	delete(c.configs, key)
	return nil
}

// Gateways lists the gateways an account has credentials for, sorted
func (c *AccountConfig) Gateways(account string) []string {
	prefix := strings.ToUpper(account) + "_"

	c.mu.RLock()
	defer c.mu.RUnlock()

	var names []string
	for key := range c.configs {
		name, ok := strings.CutPrefix(key, prefix)
		// gateway names never contain '_', longer accounts sharing the prefix do
		if ok && !strings.Contains(name, "_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetStats returns configuration and storage statistics
func (c *AccountConfig) GetStats() (map[string]any, error) {
	stats := make(map[string]any)

	c.mu.RLock()
	stats["memory_configs"] = len(c.configs)
	c.mu.RUnlock()

	type statser interface {
		GetStats() (map[string]any, error)
	}
	switch s := c.storage.(type) {
	case nil:
		stats["storage"] = "not_available"
	case statser:
		storageStats, err := s.GetStats()
		if err != nil {
			stats["storage_error"] = err.Error()
		} else {
			stats["storage"] = storageStats
		}
	default:
		stats["storage"] = "available"
	}

	return stats, nil
}
