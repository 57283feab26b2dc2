package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	ConfigPathKey   = "config.path"
	configName      = "config"
	configType      = "toml"
	configFileMode  = 0o600
	configDirMode   = 0o700
	configDir       = ".sfv"
	configFile      = "config.toml"
	tempFilePattern = ".config-*.toml.tmp"
)

// SettingsRepository reads and atomically rewrites the sfv config file.
type SettingsRepository struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SettingsRepository = (*SettingsRepository)(nil)

// NewSettingsRepository points cfg at the config file and loads it. A missing
// file is not an error.
func NewSettingsRepository(cfg *viper.Viper) (*SettingsRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	path := cfg.GetString(ConfigPathKey)
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, configDir, configFile)
	}
	path, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	cfg.SetConfigFile(path)
	cfg.SetConfigType(configType)
	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return &SettingsRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *SettingsRepository) Path() string {
	return r.path
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validKey(key); err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, err := r.readDocument()
	if err != nil {
		return "", err
	}
	value, ok := doc.lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSettingNotFound, key)
	}
	if _, isTable := value.(map[string]any); isTable {
		return "", fmt.Errorf("config key %q is a table", key)
	}
	return formatValue(value), nil
}

func (r *SettingsRepository) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.readDocument()
	if err != nil {
		return err
	}
	if err := doc.set(key, parseValue(value)); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return r.writeDocument(doc)
}

func (r *SettingsRepository) Unset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.readDocument()
	if err != nil {
		return err
	}
	if !doc.unset(key) {
		return fmt.Errorf("%w: %s", domain.ErrSettingNotFound, key)
	}
	return r.writeDocument(doc)
}

func (r *SettingsRepository) All(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, err := r.readDocument()
	if err != nil {
		return nil, err
	}
	return doc.flatten(), nil
}

func (r *SettingsRepository) readDocument() (document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return document{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	doc := document{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	if err := doc.validateVersion(); err != nil {
		return nil, err
	}
	doc.applyDefaults()

	return doc, nil
}

func (r *SettingsRepository) writeDocument(doc document) error {
	doc.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.path), configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(map[string]any(doc))
	if err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Chmod(configFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	cleanup = false

	if err := os.Chmod(r.path, configFileMode); err != nil {
		return fmt.Errorf("chmod config file: %w", err)
	}
	return nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}
	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
