package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDecrypter struct {
	mu     sync.Mutex
	calls  []string
	plain  map[string]string
	fail   map[string]error
	delays map[string]time.Duration
}

func (d *recordingDecrypter) Decrypt(_ context.Context, ciphertext string) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, ciphertext)
	delay := d.delays[ciphertext]
	err := d.fail[ciphertext]
	value := d.plain[ciphertext]
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *recordingDecrypter) attempted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func TestSecretResolverPlaintextPassesThrough(t *testing.T) {
	t.Parallel()

	resolver := NewSecretResolver(nil, nil, nil)
	value, err := resolver.Resolve(context.Background(), domain.PlaintextSecret("client_id", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}

func TestSecretResolverReadsSecretStore(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockSecretStore(t)
	store.EXPECT().Get(mockAnyContext(), "twitch/client_secret").Return("from-store", nil).Once()
	resolver := NewSecretResolver(store, nil, nil)

	ref := domain.StoredSecret("client_secret", "twitch/client_secret")
	value, err := resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "from-store", value)

	value, err = resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "from-store", value)
}

func TestSecretResolverMemoizesFirstValueByName(t *testing.T) {
	t.Parallel()

	decrypter := &recordingDecrypter{plain: map[string]string{"ct": "plain"}}
	resolver := NewSecretResolver(nil, decrypter, nil)

	first, err := resolver.Resolve(context.Background(), domain.EncryptedSecret("client_secret", "ct"))
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), domain.PlaintextSecret("client_secret", "other"))
	require.NoError(t, err)

	assert.Equal(t, "plain", first)
	assert.Equal(t, "plain", second)
	assert.Len(t, decrypter.attempted(), 1)
}

func TestSecretResolverDecryptFailureIsDecryptionError(t *testing.T) {
	t.Parallel()

	cause := errors.New("AccessDeniedException")
	resolver := NewSecretResolver(nil, &recordingDecrypter{fail: map[string]error{"ct": cause}}, nil)

	_, err := resolver.Resolve(context.Background(), domain.EncryptedSecret("client_secret", "ct"))

	var decryptErr *domain.DecryptionError
	require.True(t, errors.As(err, &decryptErr))
	assert.Equal(t, 1, decryptErr.Index)
	assert.Equal(t, "client_secret", decryptErr.Name)
	assert.ErrorIs(t, err, cause)
}

func TestSecretResolverWithoutDecrypterRejectsCiphertext(t *testing.T) {
	t.Parallel()

	_, err := NewSecretResolver(nil, nil, nil).DecryptAll(context.Background(), []string{"ct"})
	assert.ErrorIs(t, err, domain.ErrDecryptUnavailable)
}

func TestDecryptAllPreservesOrder(t *testing.T) {
	t.Parallel()

	decrypter := &recordingDecrypter{
		plain:  map[string]string{"a": "1", "b": "2", "c": "3"},
		delays: map[string]time.Duration{"a": 10 * time.Millisecond},
	}
	resolver := NewSecretResolver(nil, decrypter, nil)

	values, err := resolver.DecryptAll(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, values)
}

func TestDecryptAllStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	decrypter := &recordingDecrypter{
		plain: map[string]string{"a": "1", "c": "3", "d": "4"},
		fail:  map[string]error{"b": errors.New("kms: InvalidCiphertextException")},
	}
	resolver := NewSecretResolver(nil, decrypter, nil)

	values, err := resolver.DecryptAll(context.Background(), []string{"a", "b", "c", "d"})
	require.Error(t, err)
	assert.Nil(t, values)

	var decryptErr *domain.DecryptionError
	require.True(t, errors.As(err, &decryptErr))
	assert.Equal(t, 2, decryptErr.Index)
	assert.Equal(t, []string{"a", "b"}, decrypter.attempted())
}

func TestResolveAllReportsFailingIndex(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockSecretStore(t)
	store.EXPECT().Get(mockAnyContext(), "missing").Return("", domain.ErrSecretNotFound)
	resolver := NewSecretResolver(store, &recordingDecrypter{}, nil)

	_, err := resolver.ResolveAll(context.Background(), []domain.SecretRef{
		domain.PlaintextSecret("client_id", "abc"),
		domain.StoredSecret("client_secret", "missing"),
		domain.EncryptedSecret("other", "never"),
	})
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.Contains(t, err.Error(), "item 2 (client_secret)")
}

func TestResolveAllRejectsEmptyRef(t *testing.T) {
	t.Parallel()

	_, err := NewSecretResolver(nil, nil, nil).ResolveAll(context.Background(), []domain.SecretRef{{Name: "client_secret"}})
	assert.ErrorContains(t, err, "has no value")
}

func TestSecretResolverDecryptsCiphertextOnce(t *testing.T) {
	t.Parallel()

	decrypter := mocks.NewMockDecrypter(t)
	decrypter.EXPECT().Decrypt(mockAnyContext(), "AQIDBA==").Return("plain-secret", nil).Once()
	resolver := NewSecretResolver(nil, decrypter, nil)

	values, err := resolver.ResolveAll(context.Background(), []domain.SecretRef{
		domain.EncryptedSecret("client_secret", "AQIDBA=="),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"plain-secret"}, values)

	values, err = resolver.DecryptAll(context.Background(), []string{"AQIDBA=="})
	require.NoError(t, err)
	assert.Equal(t, []string{"plain-secret"}, values)
}

func TestSecretResolverRejectsEmptyPlaintextFromBackend(t *testing.T) {
	t.Parallel()

	decrypter := mocks.NewMockDecrypter(t)
	decrypter.EXPECT().Decrypt(mockAnyContext(), "ct").Return("", nil).Once()

	_, err := NewSecretResolver(nil, decrypter, nil).DecryptAll(context.Background(), []string{"ct"})
	var decryptErr *domain.DecryptionError
	require.ErrorAs(t, err, &decryptErr)
	assert.Equal(t, 1, decryptErr.Index)
}
