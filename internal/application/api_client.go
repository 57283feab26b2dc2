package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultUserAgent      = "Schedule From Videos Lambda"
	maxResponseBytes      = 4 << 20
)

type Response struct {
	Status int
	Body   json.RawMessage
}

// ClientIDFunc resolves the client identity sent on every resource call.
type ClientIDFunc func(ctx context.Context) (string, error)

type APIClientConfig struct {
	HTTPClient *http.Client
	ClientID   ClientIDFunc
	UserAgent  string
	Timeout    time.Duration
	Videos     VideosEndpoint
}

// APIClient performs single resource calls. It never retries.
type APIClient struct {
	httpClient *http.Client
	clientID   ClientIDFunc
	userAgent  string
	timeout    time.Duration
	videos     VideosEndpoint
	logger     *zap.Logger

	// apiScheme and apiHost are the only origin that receives Client-ID and
	// bearer credentials.
	apiScheme string
	apiHost   string
}

func NewAPIClient(cfg APIClientConfig, logger *zap.Logger) *APIClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	apiScheme, apiHost, err := domain.SplitBaseURL(cfg.Videos.BaseURL)
	if err != nil {
		logger.Warn("no api origin configured, authenticated requests will be rejected", zap.Error(err))
	}
	return &APIClient{
		apiScheme:  apiScheme,
		apiHost:    apiHost,
		httpClient: cfg.HTTPClient,
		clientID:   cfg.ClientID,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		videos:     cfg.Videos,
		logger:     logger,
	}
}

// Do sends req with cred. Failures are ErrTransport, *HTTPStatusError or ErrBodyParse.
func (c *APIClient) Do(ctx context.Context, cred domain.Credential, req domain.OutboundRequest) (Response, error) {
	endpoint, err := req.URL()
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if err := c.CheckTarget(req); err != nil {
		return Response{}, err
	}

	timeout := c.timeout
	if t := req.Timeout(); t > 0 && t < timeout {
		timeout = t
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(requestCtx, req.HTTPMethod(), endpoint, body)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	if err := c.setHeaders(ctx, httpReq, cred, req); err != nil {
		return Response{}, err
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s %s: %v", domain.ErrTransport, req.HTTPMethod(), req.Path, unwrapURLError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read response: %v", domain.ErrTransport, err)
	}

	c.logger.Debug("resource response",
		zap.String("tag", req.Tag),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{Status: resp.StatusCode}, &domain.HTTPStatusError{Status: resp.StatusCode, Body: raw}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Response{Status: resp.StatusCode}, nil
	}
	if !json.Valid(raw) {
		return Response{Status: resp.StatusCode}, fmt.Errorf("%w: %s response is not JSON", domain.ErrBodyParse, req.Path)
	}
	return Response{Status: resp.StatusCode, Body: json.RawMessage(raw)}, nil
}

// FetchVideos requests one page of archived videos for userID.
func (c *APIClient) FetchVideos(ctx context.Context, cred domain.Credential, userID, after string) (domain.VideoPage, error) {
	req, err := c.videos.Request("", userID, after)
	if err != nil {
		return domain.VideoPage{}, err
	}
	resp, err := c.Do(ctx, cred, req)
	if err != nil {
		return domain.VideoPage{}, err
	}
	return DecodeVideoPage(resp.Body)
}

func (c *APIClient) setHeaders(ctx context.Context, httpReq *http.Request, cred domain.Credential, req domain.OutboundRequest) error {
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != nil && c.trusts(req) {
		clientID, err := c.clientID(ctx)
		if err != nil {
			return fmt.Errorf("resolve client id: %w", err)
		}
		if clientID != "" {
			httpReq.Header.Set("Client-ID", clientID)
		}
	}
	if req.Authenticated {
		if cred.IsZero() {
			return errors.New("authenticated request without credential")
		}
		httpReq.Header.Set("Authorization", cred.AuthorizationHeader())
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	return nil
}

// CheckTarget rejects authenticated requests aimed anywhere but the API origin.
func (c *APIClient) CheckTarget(req domain.OutboundRequest) error {
	if !req.Authenticated || c.trusts(req) {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrUntrustedHost, req.Host)
}

func (c *APIClient) trusts(req domain.OutboundRequest) bool {
	return req.Targets(c.apiScheme, c.apiHost)
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// DecodeVideoPage parses a Helix video list body.
func DecodeVideoPage(body json.RawMessage) (domain.VideoPage, error) {
	var page domain.VideoPage
	if len(body) == 0 {
		return page, fmt.Errorf("%w: empty video list", domain.ErrBodyParse)
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return domain.VideoPage{}, fmt.Errorf("%w: decode video list: %v", domain.ErrBodyParse, err)
	}
	if page.Data == nil {
		return domain.VideoPage{}, fmt.Errorf("%w: video list missing data", domain.ErrBodyParse)
	}
	return page, nil
}

// VideosEndpoint builds Helix video list requests.
type VideosEndpoint struct {
	BaseURL  string
	Path     string
	PageSize int
}

func (e VideosEndpoint) Request(tag, userID, after string) (domain.OutboundRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.OutboundRequest{}, errors.New("user id is required")
	}
	scheme, host, err := domain.SplitBaseURL(e.BaseURL)
	if err != nil {
		return domain.OutboundRequest{}, err
	}
	path := e.Path
	if path == "" {
		path = "/helix/videos"
	}
	pageSize := e.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	query := url.Values{}
	query.Set("first", strconv.Itoa(pageSize))
	query.Set("type", domain.VideoTypeArchive)
	query.Set("user_id", userID)
	if after != "" {
		query.Set("after", after)
	}

	return domain.OutboundRequest{
		Tag:           tag,
		Scheme:        scheme,
		Host:          host,
		Path:          path,
		Method:        http.MethodGet,
		Query:         query,
		Authenticated: true,
	}, nil
}

// AuthorizedClient runs authenticated requests under the token provider's
// single-retry policy.
type AuthorizedClient struct {
	provider *TokenProvider
	api      *APIClient
}

func NewAuthorizedClient(provider *TokenProvider, api *APIClient) *AuthorizedClient {
	return &AuthorizedClient{provider: provider, api: api}
}

func (c *AuthorizedClient) Do(ctx context.Context, req domain.OutboundRequest) (Response, error) {
	if !req.Authenticated {
		return c.api.Do(ctx, domain.Credential{}, req)
	}
	if err := c.api.CheckTarget(req); err != nil {
		return Response{}, err
	}

	var resp Response
	err := c.provider.Do(ctx, func(ctx context.Context, cred domain.Credential) error {
		var err error
		resp, err = c.api.Do(ctx, cred, req)
		return err
	})
	return resp, err
}

// FetchVideos fetches one page with token handling.
func (c *AuthorizedClient) FetchVideos(ctx context.Context, userID, after string) (domain.VideoPage, error) {
	var page domain.VideoPage
	err := c.provider.Do(ctx, func(ctx context.Context, cred domain.Credential) error {
		var err error
		page, err = c.api.FetchVideos(ctx, cred, userID, after)
		return err
	})
	return page, err
}
