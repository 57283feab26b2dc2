package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCredentials(id, secret string) CredentialsFunc {
	return func(context.Context) (ClientCredentials, error) {
		return ClientCredentials{ClientID: id, ClientSecret: secret}, nil
	}
}

func newTestAdapter(server *httptest.Server) ClientCredentialsAdapter {
	return ClientCredentialsAdapter{
		API: API{
			BaseURL:   server.URL,
			TokenPath: "/oauth2/token",
		},
		Credentials: staticCredentials("client-123", "secret-456"),
		HTTPClient:  server.Client(),
		UserAgent:   "Schedule From Videos Lambda",
	}
}

func TestFetchTokenSendsClientCredentialsInQuery(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth2/token", r.URL.Path)
		assert.Equal(t, "client-123", r.URL.Query().Get("client_id"))
		assert.Equal(t, "secret-456", r.URL.Query().Get("client_secret"))
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "Schedule From Videos Lambda", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":5011271}`))
	}))
	t.Cleanup(server.Close)

	adapter := newTestAdapter(server)
	adapter.Clock = fixedClock(issued)

	cred, err := adapter.FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", cred.AccessToken)
	assert.Equal(t, "bearer", cred.TokenType)
	assert.Equal(t, 5011271*time.Second, cred.ExpiresIn)
	assert.Equal(t, issued, cred.IssuedAt)
}

func TestFetchTokenAcceptsBodyWithoutExpiry(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"abc"}`))
	}))
	t.Cleanup(server.Close)

	cred, err := newTestAdapter(server).FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", cred.AccessToken)
	assert.True(t, cred.ExpiresAt().IsZero())
}

func TestFetchTokenNon200IsTokenFetchFailureWithBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"message":"invalid client secret"}`))
	}))
	t.Cleanup(server.Close)

	_, err := newTestAdapter(server).FetchToken(context.Background())
	require.Error(t, err)

	var fetchErr *domain.TokenFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusBadRequest, fetchErr.Status)
	assert.JSONEq(t, `{"status":400,"message":"invalid client secret"}`, string(fetchErr.Body))
	assert.Contains(t, err.Error(), "invalid client secret")
}

func TestFetchTokenMalformedBodyIsBodyParseFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	t.Cleanup(server.Close)

	_, err := newTestAdapter(server).FetchToken(context.Background())
	require.Error(t, err)

	var fetchErr *domain.TokenFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.ErrorIs(t, err, domain.ErrBodyParse)
	assert.Equal(t, http.StatusOK, fetchErr.Status)
}

func TestFetchTokenMissingAccessToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	t.Cleanup(server.Close)

	_, err := newTestAdapter(server).FetchToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errMissingAccessToken)
	assert.ErrorIs(t, err, domain.ErrBodyParse)
}

func TestFetchTokenTimesOutWithoutCallerDeadline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"access_token":"abc"}`))
	}))
	t.Cleanup(server.Close)

	adapter := newTestAdapter(server)
	adapter.RequestTimeout = 20 * time.Millisecond

	_, err := adapter.FetchToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotContains(t, err.Error(), "secret-456")
}

func TestFetchTokenDoesNotCallEndpointWhenCredentialsFail(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(server.Close)

	decryptErr := &domain.DecryptionError{Index: 1, Name: "client_secret", Err: errors.New("kms down")}
	adapter := newTestAdapter(server)
	adapter.Credentials = func(context.Context) (ClientCredentials, error) {
		return ClientCredentials{}, decryptErr
	}

	_, err := adapter.FetchToken(context.Background())
	require.Error(t, err)

	var target *domain.DecryptionError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchTokenRejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	adapter := ClientCredentialsAdapter{
		API:         API{BaseURL: "ftp://id.twitch.tv", TokenPath: "/oauth2/token"},
		Credentials: staticCredentials("id", "secret"),
	}

	_, err := adapter.FetchToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must use http or https")
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time {
	return time.Time(c)
}
