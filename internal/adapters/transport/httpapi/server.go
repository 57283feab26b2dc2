// Package httpapi serves invocations over plain HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/schedule-from-videos/internal/application"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxRequestBytes = 1 << 20
	shutdownTimeout = 5 * time.Second
)

type Invoker interface {
	Invoke(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

type Option func(*Server)

// WithHandler mounts an extra handler, such as the bridge socket.
func WithHandler(pattern string, handler http.Handler) Option {
	return func(s *Server) {
		s.mux.Handle(pattern, handler)
	}
}

type Server struct {
	invoker Invoker
	logger  *zap.Logger
	mux     *http.ServeMux
}

func New(invoker Invoker, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{invoker: invoker, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /invoke", s.handleInvoke)
	s.mux.HandleFunc("GET /schedule/{user_id}", s.handleSchedule)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "ok")
	})
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on addr until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", zap.String("addr", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte(`{}`)
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}
	s.invoke(w, r, body)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	payload, err := json.Marshal(application.ScheduleRequest{UserID: r.PathValue("user_id")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invoke(w, r, payload)
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := s.logger.With(zap.String("request_id", requestID))
	w.Header().Set("X-Request-ID", requestID)

	started := time.Now()
	result, err := s.invoker.Invoke(r.Context(), payload)
	logger = logger.With(zap.Duration("elapsed", time.Since(started)))

	var invocationErr *application.InvocationError
	switch {
	case err == nil:
		logger.Info("invocation complete")
		writeJSON(w, http.StatusOK, result)
	case errors.As(err, &invocationErr):
		logger.Warn("invocation returned error payload")
		writeJSON(w, http.StatusBadGateway, invocationErr.Payload)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("invocation timed out", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, context.Canceled):
		logger.Info("client went away", zap.Error(err))
	default:
		logger.Error("invocation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body json.RawMessage) {
	if len(body) == 0 {
		body = json.RawMessage(`null`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	writeJSON(w, status, body)
}
