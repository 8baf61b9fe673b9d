package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reseller-hub/internal/config"
)

// Keys used by the services. Each key is owned by exactly one component.
const (
	KeyProviderConfig     = "pixConfigurations"
	KeyShipments          = "kwaiEnvios"
	KeyFulfillmentSession = "kwaiSession"
	KeySimulationMode     = "kwaiSimulationMode"
	KeySales              = "vendas"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("key not found")

// Store is a process-wide key-value blob store. Writes are full-value
// overwrites; there are no transactions across keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open creates the store backend selected in cfg
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreBackendSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.StoreBackendRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	case config.StoreBackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

// GetJSON reads key and decodes it into dst. It returns ErrNotFound when the
// key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
