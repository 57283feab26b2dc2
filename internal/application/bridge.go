package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"go.uber.org/zap"
)

// Emitter receives events produced by asynchronous commands. It may be called
// from several goroutines at once.
type Emitter func(domain.Event)

// Outcome is the terminal result of one invocation.
type Outcome struct {
	Payload json.RawMessage
	Failed  bool
}

type Continuation func(Outcome)

type Decryptor interface {
	DecryptAll(ctx context.Context, ciphertexts []string) ([]string, error)
}

type Requester interface {
	Do(ctx context.Context, req domain.OutboundRequest) (Response, error)
}

var ErrContinuationRegistered = errors.New("continuation already registered")

// Bridge executes commands against real I/O and reports outcomes as events.
type Bridge struct {
	secrets Decryptor
	http    Requester
	logger  *zap.Logger

	mu            sync.Mutex
	continuations map[domain.StateToken]Continuation
	inflight      sync.WaitGroup
}

func NewBridge(secrets Decryptor, http Requester, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		secrets:       secrets,
		http:          http,
		logger:        logger,
		continuations: make(map[domain.StateToken]Continuation),
	}
}

func (b *Bridge) Register(token domain.StateToken, cont Continuation) error {
	if token == "" {
		return errors.New("state token is required")
	}
	if cont == nil {
		return errors.New("continuation is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.continuations[token]; ok {
		return fmt.Errorf("%w: %s", ErrContinuationRegistered, token)
	}
	b.continuations[token] = cont
	return nil
}

// Forget drops a continuation without resolving it.
func (b *Bridge) Forget(token domain.StateToken) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.continuations, token)
}

// Execute runs cmd. Decrypt and HTTP commands run in their own goroutine and
// report through emit; terminal commands resolve the continuation for cmd.State.
func (b *Bridge) Execute(ctx context.Context, cmd domain.Command, emit Emitter) {
	if emit == nil {
		emit = func(domain.Event) {}
	}
	logger := b.logger.With(zap.String("state", string(cmd.State)), zap.String("command", string(cmd.Kind)))

	switch cmd.Kind {
	case domain.CommandDecrypt:
		b.async(func() {
			emit(b.decrypt(ctx, cmd))
		})

	case domain.CommandHTTPRequest:
		if cmd.Request == nil {
			logger.Warn("http command without request")
			emit(domain.NetworkErrorEvent(cmd.State, "", errors.New("http command carries no request")))
			return
		}
		req := *cmd.Request
		b.async(func() {
			emit(b.request(ctx, cmd.State, req, logger))
		})

	case domain.CommandSuccess:
		b.resolve(cmd.State, Outcome{Payload: cmd.Payload}, logger)

	case domain.CommandError:
		b.resolve(cmd.State, Outcome{Payload: cmd.Payload, Failed: true}, logger)

	case domain.CommandLog:
		b.log(cmd)

	default:
		logger.Warn("dropping command", zap.Error(fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Kind)))
	}
}

// Wait blocks until every in-flight command has emitted its event.
func (b *Bridge) Wait() {
	b.inflight.Wait()
}

func (b *Bridge) async(fn func()) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		fn()
	}()
}

func (b *Bridge) decrypt(ctx context.Context, cmd domain.Command) domain.Event {
	if b.secrets == nil {
		return domain.DecryptionErrorEvent(cmd.State, &domain.DecryptionError{Index: 1, Err: domain.ErrDecryptUnavailable})
	}
	// Issued commands always reach an outcome; only the request timeout bounds them.
	values, err := b.secrets.DecryptAll(context.WithoutCancel(ctx), cmd.Values)
	if err != nil {
		return domain.DecryptionErrorEvent(cmd.State, err)
	}
	return domain.DecryptedEvent(cmd.State, values)
}

func (b *Bridge) request(ctx context.Context, state domain.StateToken, req domain.OutboundRequest, logger *zap.Logger) domain.Event {
	if b.http == nil {
		return domain.NetworkErrorEvent(state, req.Tag, errors.New("http transport is not configured"))
	}
	resp, err := b.http.Do(context.WithoutCancel(ctx), req)
	if err != nil {
		logger.Info("request failed", zap.String("tag", req.Tag), zap.Error(err))
	}
	return ResponseEvent(state, req.Tag, resp, err)
}

// ResponseEvent maps a request outcome onto its event, keeping tag.
func ResponseEvent(state domain.StateToken, tag string, resp Response, err error) domain.Event {
	if err == nil {
		return domain.HTTPResponseEvent(state, tag, resp.Status, resp.Body)
	}

	var fetchErr *domain.TokenFetchError
	if errors.As(err, &fetchErr) {
		switch {
		case errors.Is(fetchErr, domain.ErrBodyParse):
			return domain.BadBodyEvent(state, tag, err)
		case fetchErr.Status == 0:
			return domain.NetworkErrorEvent(state, tag, err)
		}
		event := domain.BadStatusEvent(state, tag, fetchErr.Status, fetchErr.Body)
		event.Error = err.Error()
		return event
	}

	var statusErr *domain.HTTPStatusError
	if errors.As(err, &statusErr) {
		return domain.BadStatusEvent(state, tag, statusErr.Status, statusErr.Body)
	}
	if errors.Is(err, domain.ErrBodyParse) {
		return domain.BadBodyEvent(state, tag, err)
	}
	return domain.NetworkErrorEvent(state, tag, err)
}

func (b *Bridge) resolve(token domain.StateToken, outcome Outcome, logger *zap.Logger) {
	b.mu.Lock()
	cont, ok := b.continuations[token]
	delete(b.continuations, token)
	b.mu.Unlock()

	if !ok {
		logger.Warn("no continuation for terminal command")
		return
	}
	cont(outcome)
}

func (b *Bridge) log(cmd domain.Command) {
	fields := []zap.Field{zap.String("state", string(cmd.State)), zap.String("source", "decider")}
	switch strings.ToLower(cmd.Level) {
	case "debug":
		b.logger.Debug(cmd.Message, fields...)
	case "warn", "warning":
		b.logger.Warn(cmd.Message, fields...)
	case "error":
		b.logger.Error(cmd.Message, fields...)
	default:
		b.logger.Info(cmd.Message, fields...)
	}
}
