package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/logging"
	"github.com/bnema/schedule-from-videos/internal/ports"
	"go.uber.org/zap"
)

// SecretResolver turns secret references into plaintext. Values are memoized
// for the life of the process; the first successful resolution of a name wins.
type SecretResolver struct {
	store     ports.SecretStore
	decrypter ports.Decrypter
	logger    *zap.Logger

	mu        sync.Mutex
	byName    map[string]string
	decrypted map[string]string
}

func NewSecretResolver(store ports.SecretStore, decrypter ports.Decrypter, logger *zap.Logger) *SecretResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecretResolver{
		store:     store,
		decrypter: decrypter,
		logger:    logger,
		byName:    make(map[string]string),
		decrypted: make(map[string]string),
	}
}

func (r *SecretResolver) Resolve(ctx context.Context, ref domain.SecretRef) (string, error) {
	return r.resolve(ctx, 1, ref)
}

// ResolveAll resolves refs in order and stops at the first failure.
func (r *SecretResolver) ResolveAll(ctx context.Context, refs []domain.SecretRef) ([]string, error) {
	values := make([]string, 0, len(refs))
	for i, ref := range refs {
		value, err := r.resolve(ctx, i+1, ref)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// DecryptAll decrypts ciphertexts in order and stops at the first failure.
func (r *SecretResolver) DecryptAll(ctx context.Context, ciphertexts []string) ([]string, error) {
	values := make([]string, 0, len(ciphertexts))
	for i, ciphertext := range ciphertexts {
		value, err := r.decrypt(ctx, i+1, "", ciphertext)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func (r *SecretResolver) resolve(ctx context.Context, index int, ref domain.SecretRef) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", fmt.Errorf("resolve item %d: %w", index, err)
	}
	if value, ok := r.cached(ref.Name); ok {
		return value, nil
	}

	var (
		value string
		err   error
	)
	switch ref.Kind() {
	case domain.SecretKindPlaintext:
		value = ref.Plaintext
	case domain.SecretKindStore:
		value, err = r.readStore(ctx, ref.StoreKey)
		if err != nil {
			return "", fmt.Errorf("resolve item %d (%s): %w", index, ref.Name, err)
		}
	case domain.SecretKindCiphertext:
		value, err = r.decrypt(ctx, index, ref.Name, ref.Ciphertext)
		if err != nil {
			return "", err
		}
	}

	value = r.remember(ref.Name, value)
	r.logger.Debug("secret resolved", zap.String("name", ref.Name), zap.String("source", string(ref.Kind())), logging.Secret("value", value))
	return value, nil
}

func (r *SecretResolver) readStore(ctx context.Context, key string) (string, error) {
	if r.store == nil {
		return "", fmt.Errorf("read secret %q: %w", key, domain.ErrSecretNotFound)
	}
	value, err := r.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read secret %q: %w", key, err)
	}
	return value, nil
}

func (r *SecretResolver) decrypt(ctx context.Context, index int, name, ciphertext string) (string, error) {
	r.mu.Lock()
	value, ok := r.decrypted[ciphertext]
	r.mu.Unlock()
	if ok {
		return value, nil
	}

	if r.decrypter == nil {
		return "", &domain.DecryptionError{Index: index, Name: name, Err: domain.ErrDecryptUnavailable}
	}
	value, err := r.decrypter.Decrypt(ctx, ciphertext)
	if err != nil {
		r.logger.Warn("decrypt failed", zap.Int("index", index), zap.String("name", name), zap.Error(err))
		return "", &domain.DecryptionError{Index: index, Name: name, Err: err}
	}
	if value == "" {
		return "", &domain.DecryptionError{Index: index, Name: name, Err: errors.New("decrypted value is empty")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.decrypted[ciphertext]; ok {
		return existing, nil
	}
	r.decrypted[ciphertext] = value
	return value, nil
}

func (r *SecretResolver) cached(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.byName[name]
	return value, ok
}

func (r *SecretResolver) remember(name, value string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[name]; ok {
		return existing
	}
	r.byName[name] = value
	return value
}
