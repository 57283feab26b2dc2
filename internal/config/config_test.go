package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, Apply(v))
	v.Set("secrets.dir", t.TempDir())
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")

	settings, err := Load(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "https://id.twitch.tv", settings.Identity.BaseURL)
	assert.Equal(t, "/oauth2/token", settings.Identity.TokenPath)
	assert.Equal(t, "https://api.twitch.tv", settings.API.BaseURL)
	assert.Equal(t, "/helix/videos", settings.API.VideosPath)
	assert.Equal(t, 100, settings.API.PageSize)
	assert.Equal(t, 1, settings.API.MaxPages)
	assert.Equal(t, 5*time.Second, settings.HTTP.Timeout)
	assert.Equal(t, "Schedule From Videos Lambda", settings.HTTP.UserAgent)
	assert.Equal(t, BackendNone, settings.Decrypt.Backend)
	assert.Equal(t, "transit", settings.Vault.TransitMount)
	assert.Equal(t, "info", settings.Log.Level)
}

func TestLoadReadsLambdaEnvironment(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "client-123")
	t.Setenv("TWITCH_CLIENT_SECRET_ENCRYPTED", "AQICAHg=")
	t.Setenv("AWS_REGION", "us-west-2")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "schedule-from-videos")

	settings, err := Load(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "client-123", settings.Client.ID)
	assert.Equal(t, "AQICAHg=", settings.Client.SecretEncrypted)
	assert.Equal(t, BackendKMS, settings.Decrypt.Backend)
	assert.Equal(t, "us-west-2", settings.Decrypt.Region)
	assert.Equal(t, map[string]string{"LambdaFunctionName": "schedule-from-videos"}, settings.Decrypt.EncryptionContext)
}

func TestPrefixedEnvWinsOverLegacyName(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "legacy")
	t.Setenv("SFV_CLIENT_ID", "prefixed")
	t.Setenv("SFV_API_MAX_PAGES", "4")

	settings, err := Load(newTestViper(t))
	require.NoError(t, err)
	assert.Equal(t, "prefixed", settings.Client.ID)
	assert.Equal(t, 4, settings.API.MaxPages)
}

func TestLoadValidatesValues(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  string
	}{
		{key: "api.page_size", value: 0, want: "api.page_size"},
		{key: "api.page_size", value: 101, want: "api.page_size"},
		{key: "api.max_pages", value: 0, want: "api.max_pages"},
		{key: "http.timeout", value: "0s", want: "http.timeout"},
		{key: "decrypt.backend", value: "gcp", want: "unknown decrypt.backend"},
		{key: "decrypt.encryption_context", value: "oops", want: "invalid pair"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			v := newTestViper(t)
			v.Set(tc.key, tc.value)
			_, err := Load(v)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestParseEncryptionContext(t *testing.T) {
	t.Parallel()

	got, err := ParseEncryptionContext("LambdaFunctionName=sfv, stage = prod")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"LambdaFunctionName": "sfv", "stage": "prod"}, got)

	got, err = ParseEncryptionContext("  ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKnownKeys(t *testing.T) {
	t.Parallel()

	assert.True(t, Known("api.max_pages"))
	assert.True(t, Known(" Client.ID "))
	assert.False(t, Known("api.unknown"))
	assert.True(t, IsSecret("client.secret"))
	assert.False(t, IsSecret("client.id"))
	assert.Contains(t, Keys(), "vault.transit_mount")
}

func TestLoadServeSettings(t *testing.T) {
	v := newTestViper(t)

	settings, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", settings.Serve.Listen)
	assert.Empty(t, settings.Serve.BridgeToken)
	assert.Empty(t, settings.Serve.AllowedOrigins)

	v.Set("serve.allowed_origins", " https://a.ext-twitch.tv, ,https://b.example ")
	v.Set("serve.bridge_token", " shared ")
	settings, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.ext-twitch.tv", "https://b.example"}, settings.Serve.AllowedOrigins)
	assert.Equal(t, "shared", settings.Serve.BridgeToken)
	assert.True(t, IsSecret("serve.bridge_token"))
}
