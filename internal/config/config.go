// Package config loads sfv settings from the config file, SFV_* variables and
// the Twitch variables used by the Lambda deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "SFV"

	BackendKMS   = "kms"
	BackendVault = "vault"
	BackendNone  = "none"

	lambdaFunctionNameEnv = "AWS_LAMBDA_FUNCTION_NAME"
)

var defaults = map[string]any{
	"identity.base_url":           "https://id.twitch.tv",
	"identity.token_path":         "/oauth2/token",
	"api.base_url":                "https://api.twitch.tv",
	"api.videos_path":             "/helix/videos",
	"api.page_size":               100,
	"api.max_pages":               1,
	"http.timeout":                "5s",
	"http.user_agent":             "Schedule From Videos Lambda",
	"client.id":                   "",
	"client.secret":               "",
	"client.secret_encrypted":     "",
	"client.secret_store_key":     "",
	"decrypt.backend":             "",
	"decrypt.region":              "",
	"decrypt.profile":             "",
	"decrypt.key_id":              "",
	"decrypt.encryption_context":  "",
	"vault.address":               "",
	"vault.token":                 "",
	"vault.namespace":             "",
	"vault.transit_mount":         "transit",
	"vault.key":                   "",
	"secrets.dir":                 "",
	"secrets.pass_prefix":         "sfv",
	"log.level":                   "info",
	"log.format":                  "json",
	"serve.listen":                "127.0.0.1:8080",
	"serve.allowed_origins":       "",
	"serve.bridge_token":          "",
}

// legacyEnv maps keys to the variable names the Lambda function was deployed with.
var legacyEnv = map[string][]string{
	"client.id":               {"TWITCH_CLIENT_ID"},
	"client.secret":           {"TWITCH_CLIENT_SECRET"},
	"client.secret_encrypted": {"TWITCH_CLIENT_SECRET_ENCRYPTED"},
	"decrypt.region":          {"AWS_REGION", "AWS_DEFAULT_REGION"},
	"vault.address":           {"VAULT_ADDR"},
	"vault.token":             {"VAULT_TOKEN"},
}

// secretKeys are masked by "config show".
var secretKeys = map[string]struct{}{
	"client.secret":      {},
	"vault.token":        {},
	"serve.bridge_token": {},
}

type Identity struct {
	BaseURL   string
	TokenPath string
}

type API struct {
	BaseURL    string
	VideosPath string
	PageSize   int
	MaxPages   int
}

type HTTP struct {
	Timeout   time.Duration
	UserAgent string
}

type Client struct {
	ID              string
	Secret          string
	SecretEncrypted string
	SecretStoreKey  string
}

type Decrypt struct {
	Backend           string
	Region            string
	Profile           string
	KeyID             string
	EncryptionContext map[string]string
}

type Vault struct {
	Address      string
	Token        string
	Namespace    string
	TransitMount string
	Key          string
}

// Serve configures "sfv serve". The websocket bridge is mounted only when
// BridgeToken is set.
type Serve struct {
	Listen         string
	AllowedOrigins []string
	BridgeToken    string
}

type Log struct {
	Level  string
	Format string
}

type Settings struct {
	Identity   Identity
	API        API
	HTTP       HTTP
	Client     Client
	Decrypt    Decrypt
	Vault      Vault
	SecretsDir string
	PassPrefix string
	Log        Log
	Serve      Serve
}

// Apply registers defaults and environment bindings on v.
func Apply(v *viper.Viper) error {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func Load(v *viper.Viper) (Settings, error) {
	timeout := v.GetDuration("http.timeout")
	if timeout <= 0 {
		return Settings{}, fmt.Errorf("http.timeout must be positive, got %q", v.GetString("http.timeout"))
	}

	settings := Settings{
		Identity: Identity{
			BaseURL:   v.GetString("identity.base_url"),
			TokenPath: v.GetString("identity.token_path"),
		},
		API: API{
			BaseURL:    v.GetString("api.base_url"),
			VideosPath: v.GetString("api.videos_path"),
			PageSize:   v.GetInt("api.page_size"),
			MaxPages:   v.GetInt("api.max_pages"),
		},
		HTTP: HTTP{
			Timeout:   timeout,
			UserAgent: v.GetString("http.user_agent"),
		},
		Client: Client{
			ID:              strings.TrimSpace(v.GetString("client.id")),
			Secret:          v.GetString("client.secret"),
			SecretEncrypted: strings.TrimSpace(v.GetString("client.secret_encrypted")),
			SecretStoreKey:  strings.TrimSpace(v.GetString("client.secret_store_key")),
		},
		Decrypt: Decrypt{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("decrypt.backend"))),
			Region:  strings.TrimSpace(v.GetString("decrypt.region")),
			Profile: strings.TrimSpace(v.GetString("decrypt.profile")),
			KeyID:   strings.TrimSpace(v.GetString("decrypt.key_id")),
		},
		Vault: Vault{
			Address:      strings.TrimSpace(v.GetString("vault.address")),
			Token:        v.GetString("vault.token"),
			Namespace:    strings.TrimSpace(v.GetString("vault.namespace")),
			TransitMount: strings.TrimSpace(v.GetString("vault.transit_mount")),
			Key:          strings.TrimSpace(v.GetString("vault.key")),
		},
		SecretsDir: v.GetString("secrets.dir"),
		PassPrefix: strings.Trim(strings.TrimSpace(v.GetString("secrets.pass_prefix")), "/"),
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Serve: Serve{
			Listen:         v.GetString("serve.listen"),
			AllowedOrigins: splitList(v.GetString("serve.allowed_origins")),
			BridgeToken:    strings.TrimSpace(v.GetString("serve.bridge_token")),
		},
	}

	if settings.API.PageSize < 1 || settings.API.PageSize > 100 {
		return Settings{}, fmt.Errorf("api.page_size must be between 1 and 100, got %d", settings.API.PageSize)
	}
	if settings.API.MaxPages < 1 {
		return Settings{}, fmt.Errorf("api.max_pages must be at least 1, got %d", settings.API.MaxPages)
	}

	if settings.Decrypt.Backend == "" {
		settings.Decrypt.Backend = BackendNone
		if settings.Client.SecretEncrypted != "" {
			settings.Decrypt.Backend = BackendKMS
		}
	}
	switch settings.Decrypt.Backend {
	case BackendKMS, BackendVault, BackendNone:
	default:
		return Settings{}, fmt.Errorf("unknown decrypt.backend %q (expected kms, vault, or none)", settings.Decrypt.Backend)
	}

	encryptionContext, err := ParseEncryptionContext(v.GetString("decrypt.encryption_context"))
	if err != nil {
		return Settings{}, err
	}
	if len(encryptionContext) == 0 && settings.Decrypt.Backend == BackendKMS {
		if name := os.Getenv(lambdaFunctionNameEnv); name != "" {
			encryptionContext = map[string]string{"LambdaFunctionName": name}
		}
	}
	settings.Decrypt.EncryptionContext = encryptionContext

	if settings.SecretsDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return Settings{}, fmt.Errorf("resolve home directory: %w", err)
		}
		settings.SecretsDir = filepath.Join(homeDir, ".sfv", "secrets")
	}

	return settings, nil
}

// ParseEncryptionContext reads "k=v,k2=v2".
func ParseEncryptionContext(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("decrypt.encryption_context: invalid pair %q (expected key=value)", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// splitList reads "a, b,c".
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Keys lists every known key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func Known(key string) bool {
	_, ok := defaults[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

func IsSecret(key string) bool {
	_, ok := secretKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

var ErrUnknownKey = errors.New("unknown config key")
