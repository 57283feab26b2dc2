// Package ws carries the command/event protocol over a websocket so a remote
// decision component, such as the extension frontend, can drive the bridge.
// Peers authenticate with a shared token and browser peers must come from an
// allowed origin.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDecryptRefused is reported to peers that send a decrypt command.
var ErrDecryptRefused = errors.New("decrypt commands are not accepted from bridge peers")

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	maxFrameBytes = 1 << 20
	sendBuffer    = 64
)

// HostNotification is relayed by the browser host helper.
type HostNotification struct {
	Kind    domain.EventKind  `json:"kind"`
	State   domain.StateToken `json:"state,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Inbound is one frame sent by the peer. Exactly one field is set.
type Inbound struct {
	Command *domain.Command   `json:"command,omitempty"`
	Host    *HostNotification `json:"host,omitempty"`
}

// Outbound is one frame sent to the peer.
type Outbound struct {
	Event   *domain.Event `json:"event,omitempty"`
	Outcome *Outcome      `json:"outcome,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Outcome acknowledges a terminal command.
type Outcome struct {
	State   domain.StateToken `json:"state"`
	Payload json.RawMessage   `json:"payload,omitempty"`
	Failed  bool              `json:"failed,omitempty"`
}

// Config controls who may open a bridge socket.
type Config struct {
	// AllowedOrigins lists browser origins such as "https://abc.ext-twitch.tv".
	// Requests without an Origin header do not come from a browser page.
	AllowedOrigins []string
	// Token is the shared peer secret, sent as "Authorization: Bearer <token>"
	// or as the "token" query parameter. An empty token disables the bridge.
	Token string
}

// Handler upgrades GET requests and serves one bridge per connection. Peers
// may issue HTTP and terminal commands; decryption stays local to the process.
type Handler struct {
	http     application.Requester
	token    string
	origins  map[string]struct{}
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(requester application.Requester, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		http:    requester,
		token:   cfg.Token,
		origins: make(map[string]struct{}, len(cfg.AllowedOrigins)),
		logger:  logger,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin = normalizeOrigin(origin); origin != "" {
			h.origins[origin] = struct{}{}
		}
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		http.Error(w, "bridge is disabled", http.StatusServiceUnavailable)
		return
	}
	if !h.authorized(r) {
		h.logger.Warn("bridge peer rejected", zap.String("remote", r.RemoteAddr), zap.String("reason", "bad token"))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade bridge websocket", zap.Error(err))
		return
	}
	logger := h.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Info("bridge peer connected")
	if err := h.serve(r.Context(), conn, logger); err != nil {
		logger.Warn("bridge peer disconnected", zap.Error(err))
		return
	}
	logger.Info("bridge peer disconnected")
}

func (h *Handler) serve(parent context.Context, conn *websocket.Conn, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sess := &session{
		bridge: application.NewBridge(nil, h.http, logger),
		out:    make(chan Outbound, sendBuffer),
		done:   ctx.Done(),
		states: make(map[domain.StateToken]struct{}),
		logger: logger,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return sess.readLoop(ctx, conn)
	})
	g.Go(func() error {
		return writeLoop(ctx, conn, sess.out)
	})
	g.Go(func() error {
		<-ctx.Done()
		_ = conn.Close()
		return nil
	})

	err := g.Wait()
	cancel()
	sess.close()
	if isNormalClose(err) {
		return nil
	}
	return err
}

type session struct {
	bridge *application.Bridge
	out    chan Outbound
	done   <-chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	states map[domain.StateToken]struct{}
}

func (s *session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame Inbound
		if err := json.Unmarshal(data, &frame); err != nil {
			s.send(Outbound{Error: fmt.Sprintf("decode frame: %v", err)})
			continue
		}
		switch {
		case frame.Command != nil:
			s.command(ctx, *frame.Command)
		case frame.Host != nil:
			s.host(*frame.Host)
		default:
			s.send(Outbound{Error: "frame carries neither command nor host notification"})
		}
	}
}

func (s *session) command(ctx context.Context, cmd domain.Command) {
	if cmd.State == "" {
		s.send(Outbound{Error: fmt.Sprintf("%s command without state token", cmd.Kind)})
		return
	}
	if cmd.Kind == domain.CommandDecrypt {
		s.logger.Warn("refusing decrypt command from bridge peer", zap.String("state", string(cmd.State)))
		s.send(Outbound{Error: ErrDecryptRefused.Error()})
		return
	}
	if err := s.track(cmd.State); err != nil {
		s.send(Outbound{Error: err.Error()})
		return
	}
	s.bridge.Execute(ctx, cmd, s.emit)
}

func (s *session) host(note HostNotification) {
	event, ok := domain.HostEvent(note.Kind, note.State, note.Payload, note.Error)
	if !ok {
		s.send(Outbound{Error: fmt.Sprintf("unknown host notification %q", note.Kind)})
		return
	}
	s.logger.Debug("relaying host notification", zap.Stringer("event", event))
	s.emit(event)
}

// track registers a continuation the first time a state token is seen.
func (s *session) track(state domain.StateToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[state]; ok {
		return nil
	}
	err := s.bridge.Register(state, func(o application.Outcome) {
		s.untrack(state)
		s.send(Outbound{Outcome: &Outcome{State: state, Payload: o.Payload, Failed: o.Failed}})
	})
	if err != nil {
		return err
	}
	s.states[state] = struct{}{}
	return nil
}

func (s *session) untrack(state domain.StateToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, state)
}

func (s *session) emit(event domain.Event) {
	s.send(Outbound{Event: &event})
}

// send drops frames once the connection is gone.
func (s *session) send(frame Outbound) {
	select {
	case s.out <- frame:
	case <-s.done:
	}
}

func (s *session) close() {
	s.mu.Lock()
	states := make([]domain.StateToken, 0, len(s.states))
	for state := range s.states {
		states = append(states, state)
	}
	s.states = make(map[domain.StateToken]struct{})
	s.mu.Unlock()

	for _, state := range states {
		s.bridge.Forget(state)
	}
	s.bridge.Wait()
}

func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan Outbound) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil
		case frame := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	presented := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, value, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return false
		}
		presented = strings.TrimSpace(value)
	}
	return presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.origins[normalizeOrigin(origin)]; ok {
		return true
	}
	h.logger.Warn("bridge peer rejected", zap.String("remote", r.RemoteAddr), zap.String("origin", origin))
	return false
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

func isNormalClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed)
}
