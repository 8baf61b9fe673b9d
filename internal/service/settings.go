package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"reseller-hub/internal/model"
	"reseller-hub/internal/repository"
	"reseller-hub/pkg/logger"
)

// SettingsStore owns the provider configuration blob. Reads are served from
// memory; every Save is written through to the store before it is applied.
type SettingsStore struct {
	store    repository.Store
	validate *validator.Validate
	logger   *logger.Logger

	mu        sync.RWMutex
	current   model.ProviderConfig
	listeners []func(model.ProviderConfig)
}

// NewSettingsStore creates a settings store starting from the default table
func NewSettingsStore(store repository.Store, log *logger.Logger) *SettingsStore {
	return &SettingsStore{
		store:    store,
		validate: validator.New(),
		logger:   log.WithComponent("settings"),
		current:  model.DefaultProviderConfig(),
	}
}

// Load reads the persisted configuration. A missing or unreadable blob
// yields the defaults; a stored blob is merged over the defaults so fields
// added later keep their default value.
func (s *SettingsStore) Load(ctx context.Context) model.ProviderConfig {
	cfg := model.DefaultProviderConfig()
	err := repository.GetJSON(ctx, s.store, repository.KeyProviderConfig, &cfg)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		cfg = model.DefaultProviderConfig()
	case err != nil:
		s.logger.WithError(err).Warn("Failed to load provider configuration, using defaults")
		cfg = model.DefaultProviderConfig()
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return cfg
}

// Get returns the current configuration
func (s *SettingsStore) Get() model.ProviderConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save merges patch over the current configuration, validates and persists
// the result. The in-memory value only changes when the write succeeds.
func (s *SettingsStore) Save(ctx context.Context, patch model.ProviderConfigPatch) (model.ProviderConfig, error) {
	s.mu.Lock()
	merged := patch.Apply(s.current)
	if err := s.validate.Struct(merged); err != nil {
		s.mu.Unlock()
		return model.ProviderConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := repository.SetJSON(ctx, s.store, repository.KeyProviderConfig, merged); err != nil {
		s.mu.Unlock()
		s.logger.WithError(err).Error("Failed to persist provider configuration")
		return model.ProviderConfig{}, &PersistenceError{Key: repository.KeyProviderConfig, Err: err}
	}
	s.current = merged
	listeners := append([]func(model.ProviderConfig){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Provider configuration saved")
	for _, fn := range listeners {
		fn(merged)
	}
	return merged, nil
}

// Reset restores the default table and persists it
func (s *SettingsStore) Reset(ctx context.Context) (model.ProviderConfig, error) {
	defaults := model.DefaultProviderConfig()
	if err := repository.SetJSON(ctx, s.store, repository.KeyProviderConfig, defaults); err != nil {
		return model.ProviderConfig{}, &PersistenceError{Key: repository.KeyProviderConfig, Err: err}
	}

	s.mu.Lock()
	s.current = defaults
	listeners := append([]func(model.ProviderConfig){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Provider configuration reset to defaults")
	for _, fn := range listeners {
		fn(defaults)
	}
	return defaults, nil
}

// OnChange registers fn to be called after every successful Save or Reset
func (s *SettingsStore) OnChange(fn func(model.ProviderConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
