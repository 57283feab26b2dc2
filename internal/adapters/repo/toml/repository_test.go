package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, path string) (*SettingsRepository, *viper.Viper) {
	t.Helper()
	config := viper.New()
	config.Set(ConfigPathKey, path)
	repo, err := NewSettingsRepository(config)
	require.NoError(t, err)
	return repo, config
}

func TestSettingsRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "client.id", "abc123"))
	require.NoError(t, repo.Set(ctx, "api.max_pages", "3"))
	require.NoError(t, repo.Set(ctx, "log.level", "debug"))

	got, err := repo.Get(ctx, "client.id")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"api.max_pages": "3",
		"client.id":     "abc123",
		"log.level":     "debug",
	}, all)
}

func TestSettingsRepositoryKeepsTOMLTypesReadableByViper(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	repo, _ := newTestRepository(t, path)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "api.page_size", "50"))
	require.NoError(t, repo.Set(ctx, "client.id", "0042"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "page_size = 50")
	assert.Regexp(t, `id = ['"]0042['"]`, string(data))

	_, config := newTestRepository(t, path)
	assert.Equal(t, 50, config.GetInt("api.page_size"))
	assert.Equal(t, "0042", config.GetString("client.id"))
}

func TestSettingsRepositoryUnsetPrunesEmptyTables(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "vault.key", "sfv"))
	require.NoError(t, repo.Unset(ctx, "vault.key"))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	err = repo.Unset(ctx, "vault.key")
	assert.ErrorIs(t, err, domain.ErrSettingNotFound)
}

func TestSettingsRepositoryMissingFileBehaviors(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, filepath.Join(t.TempDir(), "missing", "config.toml"))

	all, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = repo.Get(context.Background(), "client.id")
	require.ErrorIs(t, err, domain.ErrSettingNotFound)
}

func TestSettingsRepositoryRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))
	ctx := context.Background()

	assert.ErrorContains(t, repo.Set(ctx, "", "x"), "key is required")
	assert.ErrorContains(t, repo.Set(ctx, "api..path", "x"), "empty segment")
	assert.ErrorContains(t, repo.Set(ctx, "version", "2"), "reserved")

	require.NoError(t, repo.Set(ctx, "api", "scalar"))
	assert.ErrorContains(t, repo.Set(ctx, "api.base_url", "x"), "is not a table")
}

func TestSettingsRepositorySaveCreatesDefaultPathAndEnforcesPermissions(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	repo, err := NewSettingsRepository(viper.New())
	require.NoError(t, err)
	require.NoError(t, repo.Set(context.Background(), "client.id", "abc"))

	path := filepath.Join(homeDir, ".sfv", "config.toml")
	assert.Equal(t, path, repo.Path())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSettingsRepositoryMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("client = ["), 0o600))

	_, err := NewSettingsRepository(func() *viper.Viper {
		v := viper.New()
		v.Set(ConfigPathKey, path)
		return v
	}())
	require.Error(t, err)
	assert.ErrorContains(t, err, "read config file")
}

func TestSettingsRepositorySetCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, filepath.Join(t.TempDir(), "config.toml"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Set(ctx, "client.id", "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSettingsRepositoryConcurrentSetsAcrossInstancesPreserveAllKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	repoA, _ := newTestRepository(t, path)
	repoB, _ := newTestRepository(t, path)

	const perRepoWrites = 50
	start := make(chan struct{})
	errCh := make(chan error, perRepoWrites*2)
	var wg sync.WaitGroup
	wg.Add(2)

	write := func(repo *SettingsRepository, table string) {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			errCh <- repo.Set(context.Background(), table+".key_"+strconv.Itoa(i), "v")
		}
	}
	go write(repoA, "a")
	go write(repoB, "b")

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	all, err := repoA.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, perRepoWrites*2)
}

func TestSettingsRepositoryWritesVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	repo, _ := newTestRepository(t, path)
	require.NoError(t, repo.Set(context.Background(), "client.id", "abc"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestSettingsRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"version = 999",
		"",
		"[client]",
		"id = 'abc'",
		"",
	}, "\n")), 0o600))

	repo, _ := newTestRepository(t, path)
	_, err := repo.All(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported config schema version")
}
