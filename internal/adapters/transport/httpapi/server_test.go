package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invokerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

func (f invokerFunc) Invoke(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, payload)
}

func echoInvoker() invokerFunc {
	return func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	}
}

func do(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestInvokePassesPayloadThrough(t *testing.T) {
	t.Parallel()

	rec := do(t, New(echoInvoker(), nil).Handler(), http.MethodPost, "/invoke", `{"user_id":"42"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"user_id":"42"}`, rec.Body.String())
}

func TestInvokeEmptyBodyIsEmptyObject(t *testing.T) {
	t.Parallel()

	rec := do(t, New(echoInvoker(), nil).Handler(), http.MethodPost, "/invoke", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestInvokeRejectsNonJSON(t *testing.T) {
	t.Parallel()

	rec := do(t, New(echoInvoker(), nil).Handler(), http.MethodPost, "/invoke", "user_id=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvokeRejectsOtherMethods(t *testing.T) {
	t.Parallel()

	rec := do(t, New(echoInvoker(), nil).Handler(), http.MethodGet, "/invoke", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScheduleRouteBuildsPayloadFromPath(t *testing.T) {
	t.Parallel()

	rec := do(t, New(echoInvoker(), nil).Handler(), http.MethodGet, "/schedule/56623426", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"56623426"}`, rec.Body.String())
}

func TestInvokeMapsErrorsToStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err    error
		status int
		body   string
	}{
		"error payload": {
			err:    &application.InvocationError{Payload: json.RawMessage(`{"kind":"bad_status"}`)},
			status: http.StatusBadGateway,
			body:   `{"kind":"bad_status"}`,
		},
		"deadline": {
			err:    context.DeadlineExceeded,
			status: http.StatusGatewayTimeout,
			body:   `{"error":"context deadline exceeded"}`,
		},
		"stalled": {
			err:    application.ErrDecisionStalled,
			status: http.StatusInternalServerError,
			body:   `{"error":"` + application.ErrDecisionStalled.Error() + `"}`,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			server := New(invokerFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) {
				return nil, tc.err
			}), nil)

			rec := do(t, server.Handler(), http.MethodPost, "/invoke", `{}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := do(t, New(echoInvoker(), nil).Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestWithHandlerMountsExtraRoutes(t *testing.T) {
	t.Parallel()

	extra := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := do(t, New(echoInvoker(), nil, WithHandler("GET /bridge", extra)).Handler(), http.MethodGet, "/bridge", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestServeStopsWhenContextCanceled(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(echoInvoker(), nil).Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body) == "ok"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
