package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/schedule-from-videos/internal/adapters/auth"
	kmsdecrypt "github.com/bnema/schedule-from-videos/internal/adapters/decrypt/kms"
	nodecrypt "github.com/bnema/schedule-from-videos/internal/adapters/decrypt/none"
	vaultdecrypt "github.com/bnema/schedule-from-videos/internal/adapters/decrypt/vault"
	scheduleadapter "github.com/bnema/schedule-from-videos/internal/adapters/render/schedule"
	tomlrepo "github.com/bnema/schedule-from-videos/internal/adapters/repo/toml"
	chainstore "github.com/bnema/schedule-from-videos/internal/adapters/secrets/chain"
	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/bnema/schedule-from-videos/internal/config"
	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/logging"
	"github.com/bnema/schedule-from-videos/internal/ports"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	clientIDName     = "client_id"
	clientSecretName = "client_secret"
)

type app struct {
	cfg      *viper.Viper
	settings config.Settings
	repo     *tomlrepo.SettingsRepository
	logger   *zap.Logger

	service     *application.Service
	secretStore ports.SecretStore
	resolver    *application.SecretResolver
	authorized  *application.AuthorizedClient
	invoker     *application.Invoker

	scheduleRenderer func([]domain.ScheduleEntry, scheduleadapter.RenderOptions) (string, error)
	httpClient       *http.Client
	now              func() time.Time
}

func wireApp() (*app, error) {
	cfg := viper.New()
	if err := config.Apply(cfg); err != nil {
		return nil, err
	}

	repo, err := tomlrepo.NewSettingsRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire settings repository: %w", err)
	}

	settings, err := config.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger, err := logging.New(settings.Log.Level, settings.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	secretStore, err := chainstore.NewPassFirstWithFileFallback(settings.PassPrefix, settings.SecretsDir, logger.Named("secrets"))
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	a := &app{
		cfg:              cfg,
		settings:         settings,
		repo:             repo,
		logger:           logger,
		service:          application.NewService(repo, secretStore),
		secretStore:      secretStore,
		resolver:         application.NewSecretResolver(secretStore, newDecrypter(settings, logger), logger.Named("secrets")),
		scheduleRenderer: scheduleadapter.Render,
		httpClient:       &http.Client{},
		now:              time.Now,
	}
	a.wireInvocation()
	return a, nil
}

// wireInvocation builds the token provider, API client, bridge and invoker.
func (a *app) wireInvocation() {
	s := a.settings
	clientID := domain.PlaintextSecret(clientIDName, s.Client.ID)
	clientSecret := clientSecretRef(s.Client)

	source := auth.ClientCredentialsAdapter{
		API:            auth.API{BaseURL: s.Identity.BaseURL, TokenPath: s.Identity.TokenPath},
		HTTPClient:     a.httpClient,
		RequestTimeout: s.HTTP.Timeout,
		UserAgent:      s.HTTP.UserAgent,
		Logger:         a.logger.Named("identity"),
		Credentials: func(ctx context.Context) (auth.ClientCredentials, error) {
			values, err := a.resolver.ResolveAll(ctx, []domain.SecretRef{clientID, clientSecret})
			if err != nil {
				return auth.ClientCredentials{}, err
			}
			return auth.ClientCredentials{ClientID: values[0], ClientSecret: values[1]}, nil
		},
	}

	videos := application.VideosEndpoint{
		BaseURL:  s.API.BaseURL,
		Path:     s.API.VideosPath,
		PageSize: s.API.PageSize,
	}
	provider := application.NewTokenProvider(application.NewTokenCache(ports.SystemClock{}), source, a.logger.Named("token"))
	api := application.NewAPIClient(application.APIClientConfig{
		HTTPClient: a.httpClient,
		ClientID: func(ctx context.Context) (string, error) {
			return a.resolver.Resolve(ctx, clientID)
		},
		UserAgent: s.HTTP.UserAgent,
		Timeout:   s.HTTP.Timeout,
		Videos:    videos,
	}, a.logger.Named("api"))

	a.authorized = application.NewAuthorizedClient(provider, api)
	bridge := application.NewBridge(a.resolver, a.authorized, a.logger.Named("bridge"))
	decider := application.NewScheduleDecider(videos, s.API.MaxPages, a.logger.Named("decider"))
	a.invoker = application.NewInvoker(bridge, decider, a.logger.Named("invoker"))
}

// clientSecretRef prefers ciphertext, then a plaintext value, then the secret store.
func clientSecretRef(c config.Client) domain.SecretRef {
	switch {
	case c.SecretEncrypted != "":
		return domain.EncryptedSecret(clientSecretName, c.SecretEncrypted)
	case c.Secret != "":
		return domain.PlaintextSecret(clientSecretName, c.Secret)
	case c.SecretStoreKey != "":
		return domain.StoredSecret(clientSecretName, c.SecretStoreKey)
	default:
		return domain.StoredSecret(clientSecretName, application.DefaultClientSecretStoreKey)
	}
}

func newDecrypter(s config.Settings, logger *zap.Logger) ports.Decrypter {
	switch s.Decrypt.Backend {
	case config.BackendKMS:
		return kmsdecrypt.New(kmsdecrypt.Config{
			Region:            s.Decrypt.Region,
			Profile:           s.Decrypt.Profile,
			KeyID:             s.Decrypt.KeyID,
			EncryptionContext: s.Decrypt.EncryptionContext,
		}, kmsdecrypt.WithLogger(logger.Named("kms")))
	case config.BackendVault:
		return vaultdecrypt.New(vaultdecrypt.Config{
			Address:   s.Vault.Address,
			Token:     s.Vault.Token,
			Namespace: s.Vault.Namespace,
			Mount:     s.Vault.TransitMount,
			Key:       s.Vault.Key,
		}, logger.Named("vault"))
	default:
		return nodecrypt.Decrypter{}
	}
}
