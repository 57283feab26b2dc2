package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports"
	"go.uber.org/zap"
)

const clientCredentialsGrantType = "client_credentials"
const maxOAuthResponseBytes = 1 << 20
const defaultRequestTimeout = 5 * time.Second

var errMissingAccessToken = fmt.Errorf("%w: token response missing access_token", domain.ErrBodyParse)

type API struct {
	BaseURL   string
	TokenPath string
}

type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// CredentialsFunc is called on every fetch so secrets can be resolved lazily.
type CredentialsFunc func(ctx context.Context) (ClientCredentials, error)

// ClientCredentialsAdapter exchanges a client id and secret for an app access
// token. Parameters travel in the query string, as the identity endpoint expects.
type ClientCredentialsAdapter struct {
	API            API
	Credentials    CredentialsFunc
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	UserAgent      string
	Clock          ports.Clock
	Logger         *zap.Logger
}

var _ ports.TokenSource = ClientCredentialsAdapter{}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a ClientCredentialsAdapter) FetchToken(ctx context.Context) (domain.Credential, error) {
	if a.Credentials == nil {
		return domain.Credential{}, &domain.TokenFetchError{Err: errors.New("client credentials are not configured")}
	}
	creds, err := a.Credentials(ctx)
	if err != nil {
		return domain.Credential{}, &domain.TokenFetchError{Err: fmt.Errorf("resolve client credentials: %w", err)}
	}
	if creds.ClientID == "" {
		return domain.Credential{}, &domain.TokenFetchError{Err: errors.New("client id is required")}
	}
	if creds.ClientSecret == "" {
		return domain.Credential{}, &domain.TokenFetchError{Err: errors.New("client secret is required")}
	}

	endpoint, err := buildAPIURL(a.API.BaseURL, a.API.TokenPath)
	if err != nil {
		return domain.Credential{}, &domain.TokenFetchError{Err: err}
	}

	values := url.Values{}
	values.Set("client_id", creds.ClientID)
	values.Set("client_secret", creds.ClientSecret)
	values.Set("grant_type", clientCredentialsGrantType)
	endpoint += "?" + values.Encode()

	requestCtx, cancel := a.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, nil)
	if err != nil {
		return domain.Credential{}, &domain.TokenFetchError{Err: fmt.Errorf("create token request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}

	resp, err := a.httpClient().Do(req)
	if err != nil {
		a.logger().Warn("token request failed", zap.Error(redactURLError(err)))
		return domain.Credential{}, &domain.TokenFetchError{Err: fmt.Errorf("%w: %v", domain.ErrTransport, redactURLError(err))}
	}
	defer func() { _ = resp.Body.Close() }()

	a.logger().Debug("token response", zap.Int("status", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOAuthResponseBytes))
	if err != nil {
		return domain.Credential{}, &domain.TokenFetchError{Status: resp.StatusCode, Err: fmt.Errorf("%w: read token response: %v", domain.ErrTransport, err)}
	}

	if resp.StatusCode != http.StatusOK {
		return domain.Credential{}, &domain.TokenFetchError{Status: resp.StatusCode, Body: body}
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Credential{}, &domain.TokenFetchError{Status: resp.StatusCode, Body: body, Err: fmt.Errorf("%w: %v", domain.ErrBodyParse, err)}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return domain.Credential{}, &domain.TokenFetchError{Status: resp.StatusCode, Body: body, Err: errMissingAccessToken}
	}

	return domain.Credential{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		ExpiresIn:   time.Duration(payload.ExpiresIn) * time.Second,
		IssuedAt:    a.now(),
	}, nil
}

func (a ClientCredentialsAdapter) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a ClientCredentialsAdapter) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	requestTimeout := a.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func (a ClientCredentialsAdapter) now() time.Time {
	if a.Clock != nil {
		return a.Clock.Now()
	}
	return time.Now()
}

func (a ClientCredentialsAdapter) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}

// redactURLError drops the request URL from transport errors; it carries the
// client secret in its query string.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s token endpoint: %w", strings.ToLower(urlErr.Op), urlErr.Err)
	}
	return err
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
