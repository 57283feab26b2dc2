// Package lambda exposes the invoker as an AWS Lambda function.
package lambda

import (
	"context"
	"encoding/json"
	"errors"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/bnema/schedule-from-videos/internal/application"
	"go.uber.org/zap"
)

type Invoker interface {
	Invoke(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// Failure is returned to the runtime when the decision component answers with
// an Error command. Its message is the raw payload.
type Failure struct {
	Payload json.RawMessage
}

func (f *Failure) Error() string {
	return string(f.Payload)
}

type Handler struct {
	invoker Invoker
	logger  *zap.Logger
}

func NewHandler(invoker Invoker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{invoker: invoker, logger: logger}
}

func (h *Handler) Invoke(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	logger := h.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With(zap.String("request_id", lc.AwsRequestID))
	}

	result, err := h.invoker.Invoke(ctx, payload)
	if err != nil {
		var invocationErr *application.InvocationError
		if errors.As(err, &invocationErr) {
			logger.Warn("invocation returned error payload", zap.ByteString("payload", invocationErr.Payload))
			return nil, &Failure{Payload: invocationErr.Payload}
		}
		logger.Error("invocation failed", zap.Error(err))
		return nil, err
	}
	logger.Info("invocation complete", zap.Int("bytes", len(result)))
	return result, nil
}

// Start hands control to the Lambda runtime. It does not return.
func Start(ctx context.Context, h *Handler) {
	awslambda.StartWithOptions(h.Invoke, awslambda.WithContext(ctx))
}
