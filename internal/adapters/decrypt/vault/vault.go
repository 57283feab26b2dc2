// Package vault decrypts ciphertext with the Vault transit secrets engine.
package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/schedule-from-videos/internal/ports"
	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

const defaultTransitMount = "transit"

type Config struct {
	Address   string
	Token     string
	Namespace string
	Mount     string
	Key       string
}

// Decrypter creates its client on first use. Client construction errors are
// kept and returned on every later call.
type Decrypter struct {
	cfg    Config
	logger *zap.Logger

	initOnce sync.Once
	initErr  error
	client   *vault.Client
}

var _ ports.Decrypter = (*Decrypter)(nil)

func New(cfg Config, logger *zap.Logger) *Decrypter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decrypter{cfg: cfg, logger: logger}
}

// Decrypt accepts transit ciphertext ("vault:v1:...") and returns the decoded plaintext.
func (d *Decrypter) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	ciphertext = strings.TrimSpace(ciphertext)
	if ciphertext == "" {
		return "", errors.New("vault: ciphertext is empty")
	}
	key := strings.Trim(strings.TrimSpace(d.cfg.Key), "/")
	if key == "" {
		return "", errors.New("vault: transit key is required")
	}
	if err := d.ensureClient(); err != nil {
		return "", err
	}

	path := fmt.Sprintf("%s/decrypt/%s", d.mount(), key)
	secret, err := d.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"ciphertext": ciphertext,
	})
	if err != nil {
		return "", fmt.Errorf("vault: decrypt: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.New("vault: decrypt response is empty")
	}

	encoded, ok := secret.Data["plaintext"].(string)
	if !ok {
		return "", errors.New("vault: decrypt response missing plaintext")
	}
	plain, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("vault: decode plaintext: %w", err)
	}
	return string(plain), nil
}

func (d *Decrypter) ensureClient() error {
	d.initOnce.Do(func() {
		address := strings.TrimSpace(d.cfg.Address)
		if address == "" {
			d.initErr = errors.New("vault: address is required")
			return
		}
		apiCfg := vault.DefaultConfig()
		apiCfg.Address = address
		client, err := vault.NewClient(apiCfg)
		if err != nil {
			d.initErr = fmt.Errorf("vault: create client: %w", err)
			return
		}
		if ns := strings.TrimSpace(d.cfg.Namespace); ns != "" {
			client.SetNamespace(ns)
		}
		if token := strings.TrimSpace(d.cfg.Token); token != "" {
			client.SetToken(token)
		}
		d.logger.Debug("vault client ready", zap.String("address", address), zap.String("mount", d.mount()))
		d.client = client
	})
	return d.initErr
}

func (d *Decrypter) mount() string {
	mount := strings.Trim(strings.TrimSpace(d.cfg.Mount), "/")
	if mount == "" {
		return defaultTransitMount
	}
	return mount
}
