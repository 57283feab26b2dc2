package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports"
)

// Service manages the locally stored client secret and the settings that
// point at it.
type Service struct {
	settings ports.SettingsRepository
	store    ports.SecretStore
}

func NewService(settings ports.SettingsRepository, store ports.SecretStore) *Service {
	return &Service{settings: settings, store: store}
}

// SetClientSecret stores the secret and records its key in the settings. The
// previously referenced secret is deleted once the new key is saved.
func (s *Service) SetClientSecret(ctx context.Context, cmd SetClientSecretCommand) error {
	cmd, err := cmd.normalized()
	if err != nil {
		return err
	}

	previous, err := s.currentStoreKey(ctx)
	if err != nil {
		return err
	}

	if err := s.store.Put(ctx, cmd.StoreKey, cmd.Value); err != nil {
		return fmt.Errorf("store client secret: %w", err)
	}

	if err := s.settings.Set(ctx, ClientSecretStoreKeySetting, cmd.StoreKey); err != nil {
		if cmd.StoreKey == previous {
			return fmt.Errorf("save client secret key: %w", err)
		}
		if rollbackErr := s.store.Delete(ctx, cmd.StoreKey); rollbackErr != nil {
			return fmt.Errorf("save client secret key and rollback stored secret: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("save client secret key: %w", err)
	}

	if previous == "" || previous == cmd.StoreKey {
		return nil
	}

	if err := s.store.Delete(ctx, previous); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		var rollbackErr error
		if restoreErr := s.settings.Set(ctx, ClientSecretStoreKeySetting, previous); restoreErr != nil {
			rollbackErr = errors.Join(rollbackErr, restoreErr)
		}
		if newSecretDeleteErr := s.store.Delete(ctx, cmd.StoreKey); newSecretDeleteErr != nil {
			rollbackErr = errors.Join(rollbackErr, newSecretDeleteErr)
		}
		if rollbackErr != nil {
			return fmt.Errorf("delete previous client secret and rollback update: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("delete previous client secret: %w", err)
	}

	return nil
}

func (s *Service) RemoveClientSecret(ctx context.Context) error {
	key, err := s.currentStoreKey(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("remove client secret: %w", domain.ErrSecretNotFound)
	}

	if err := s.settings.Unset(ctx, ClientSecretStoreKeySetting); err != nil {
		return fmt.Errorf("clear client secret key: %w", err)
	}

	if err := s.store.Delete(ctx, key); err != nil {
		if restoreErr := s.settings.Set(ctx, ClientSecretStoreKeySetting, key); restoreErr != nil {
			return fmt.Errorf("delete client secret and restore key: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete client secret: %w", err)
	}

	return nil
}

func (s *Service) ClientSecret(ctx context.Context) (ClientSecretStatus, error) {
	key, err := s.currentStoreKey(ctx)
	if err != nil {
		return ClientSecretStatus{}, err
	}
	if key == "" {
		return ClientSecretStatus{}, nil
	}

	value, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return ClientSecretStatus{StoreKey: key}, nil
		}
		return ClientSecretStatus{}, fmt.Errorf("read client secret: %w", err)
	}
	return clientSecretStatus(key, value), nil
}

func (s *Service) SetSetting(ctx context.Context, cmd SetSettingCommand) error {
	if err := s.settings.Set(ctx, cmd.Key, cmd.Value); err != nil {
		return fmt.Errorf("save setting %s: %w", cmd.Key, err)
	}
	return nil
}

func (s *Service) UnsetSetting(ctx context.Context, key string) error {
	if err := s.settings.Unset(ctx, key); err != nil {
		return fmt.Errorf("clear setting %s: %w", key, err)
	}
	return nil
}

func (s *Service) currentStoreKey(ctx context.Context) (string, error) {
	key, err := s.settings.Get(ctx, ClientSecretStoreKeySetting)
	if err != nil {
		if errors.Is(err, domain.ErrSettingNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read client secret key: %w", err)
	}
	return key, nil
}
