package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutInsertsUnderPrefix(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		prefix: DefaultPrefix,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "-m", "-f", "sfv/twitch/client_secret"}, args)
			assert.Equal(t, "top-secret\n", input)
			return "", "", nil
		},
	}

	err := store.Put(context.Background(), "twitch/client_secret", "top-secret")
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStoreGetReturnsFirstLineOnly(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: DefaultPrefix,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "sfv/twitch/client_secret"}, args)
			assert.Empty(t, input)
			return "top-secret\r\nurl: https://dev.twitch.tv\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), "/twitch/client_secret/")
	require.NoError(t, err)
	assert.Equal(t, "top-secret", value)
}

func TestStoreWithoutPrefixUsesKeyAsIs(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "twitch/client_secret"}, args)
			return "v\n", "", nil
		},
	}

	_, err := store.Get(context.Background(), "twitch/client_secret")
	require.NoError(t, err)
}

func TestStoreMapsMissingEntryToNotFound(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: DefaultPrefix,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: sfv/twitch/client_secret is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), "twitch/client_secret")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "pass get")

	assert.NoError(t, store.Delete(context.Background(), "twitch/client_secret"))
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: DefaultPrefix,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "gpg: decryption failed: No secret key", errors.New("exit status 2")
		},
	}

	_, err := store.Get(context.Background(), "twitch/client_secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "sfv/twitch/client_secret")
	assert.ErrorContains(t, err, "No secret key")
}

func TestStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: DefaultPrefix,
		run: func(context.Context, string, ...string) (string, string, error) {
			t.Fatal("pass must not run for invalid keys")
			return "", "", nil
		},
	}

	for _, key := range []string{"", "  ", "a/../b", "a//b", "./a"} {
		assert.Error(t, store.Put(context.Background(), key, "v"), key)
	}
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore(DefaultPrefix).Get(ctx, "twitch/client_secret")
	assert.ErrorIs(t, err, context.Canceled)
}
