package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type invokerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

func (f invokerFunc) Invoke(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, payload)
}

func TestHandlerReturnsSuccessPayload(t *testing.T) {
	t.Parallel()

	var seen json.RawMessage
	handler := NewHandler(invokerFunc(func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		seen = payload
		return json.RawMessage(`[{"created_at":"t1","duration":"1h"}]`), nil
	}), nil)

	result, err := handler.Invoke(context.Background(), json.RawMessage(`{"user_id":"1"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"1"}`, string(seen))
	assert.JSONEq(t, `[{"created_at":"t1","duration":"1h"}]`, string(result))
}

func TestHandlerSurfacesErrorPayloadAsMessage(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	handler := NewHandler(invokerFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, &application.InvocationError{Payload: json.RawMessage(`{"kind":"bad_status","status":400}`)}
	}), zap.New(core))

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	_, err := handler.Invoke(ctx, json.RawMessage(`{}`))

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, `{"kind":"bad_status","status":400}`, failure.Error())

	entries := logs.FilterMessage("invocation returned error payload").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
}

func TestHandlerPassesOtherErrorsThrough(t *testing.T) {
	t.Parallel()

	handler := NewHandler(invokerFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, context.DeadlineExceeded
	}), nil)

	_, err := handler.Invoke(context.Background(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
