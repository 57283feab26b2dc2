package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrDecisionStalled = errors.New("decision component issued no further commands")

// InvocationError carries the decision component's Error payload.
type InvocationError struct {
	Payload json.RawMessage
}

func (e *InvocationError) Error() string {
	if len(e.Payload) == 0 {
		return "invocation failed"
	}
	return "invocation failed: " + string(e.Payload)
}

// Invoker runs one decision session per invocation until it reaches a terminal command.
type Invoker struct {
	bridge   *Bridge
	decider  ports.Decider
	logger   *zap.Logger
	newToken func() domain.StateToken
}

func NewInvoker(bridge *Bridge, decider ports.Decider, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		bridge:  bridge,
		decider: decider,
		logger:  logger,
		newToken: func() domain.StateToken {
			return domain.StateToken(uuid.NewString())
		},
	}
}

// Progress observes every event of one invocation before the decision sees it.
// It runs on the invoking goroutine and must not block.
type Progress func(domain.Event)

func (i *Invoker) Invoke(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return i.InvokeWithProgress(ctx, payload, nil)
}

// InvokeWithProgress is Invoke with an observer, used by the CLI to report pages.
func (i *Invoker) InvokeWithProgress(ctx context.Context, payload json.RawMessage, progress Progress) (json.RawMessage, error) {
	token := i.newToken()
	logger := i.logger.With(zap.String("state", string(token)))

	done := make(chan Outcome, 1)
	if err := i.bridge.Register(token, func(o Outcome) { done <- o }); err != nil {
		return nil, err
	}
	defer i.bridge.Forget(token)

	queue := newEventQueue()
	decision := i.decider.Start(token)
	pending := 0

	dispatch := func(event domain.Event) {
		logger.Debug("event", zap.Stringer("event", event))
		if progress != nil {
			progress(event)
		}
		for _, cmd := range decision.Handle(event) {
			if cmd.State == "" {
				cmd.State = token
			}
			if cmd.Kind == domain.CommandDecrypt || cmd.Kind == domain.CommandHTTPRequest {
				pending++
			}
			i.bridge.Execute(ctx, cmd, queue.push)
		}
	}

	logger.Info("invocation started")
	dispatch(domain.InboundInvocationEvent(token, payload))

	for {
		select {
		case outcome := <-done:
			return i.finish(outcome, logger)
		default:
		}
		if pending == 0 {
			return nil, fmt.Errorf("%w (state %s)", ErrDecisionStalled, token)
		}

		select {
		case outcome := <-done:
			return i.finish(outcome, logger)
		case <-queue.notify:
			for _, event := range queue.drain() {
				pending--
				dispatch(event)
			}
		case <-ctx.Done():
			logger.Warn("invocation abandoned", zap.Error(ctx.Err()))
			return nil, ctx.Err()
		}
	}
}

func (i *Invoker) finish(outcome Outcome, logger *zap.Logger) (json.RawMessage, error) {
	if outcome.Failed {
		logger.Info("invocation failed")
		return nil, &InvocationError{Payload: outcome.Payload}
	}
	logger.Info("invocation succeeded")
	return outcome.Payload, nil
}

// eventQueue never blocks producers, so commands finishing after the
// invocation returns do not leak goroutines.
type eventQueue struct {
	mu     sync.Mutex
	items  []domain.Event
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(event domain.Event) {
	q.mu.Lock()
	q.items = append(q.items, event)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []domain.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
