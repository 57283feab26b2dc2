package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const refreshFlightKey = "credential"

type attemptState int

const (
	attemptFresh attemptState = iota
	attemptRetrying
	attemptFinal
)

func (s attemptState) String() string {
	switch s {
	case attemptFresh:
		return "fresh"
	case attemptRetrying:
		return "retrying"
	case attemptFinal:
		return "final"
	default:
		return "unknown"
	}
}

// UseFunc performs one authenticated call. Returning an error that matches
// domain.ErrUnauthorized asks the provider to refresh and try once more.
type UseFunc func(ctx context.Context, cred domain.Credential) error

// TokenProvider hands out the cached credential and refreshes it at most once
// per logical request. Concurrent refreshes share a single identity call.
type TokenProvider struct {
	cache  *TokenCache
	source ports.TokenSource
	logger *zap.Logger
	flight singleflight.Group
}

func NewTokenProvider(cache *TokenCache, source ports.TokenSource, logger *zap.Logger) *TokenProvider {
	if cache == nil {
		cache = NewTokenCache(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenProvider{cache: cache, source: source, logger: logger}
}

func (p *TokenProvider) Do(ctx context.Context, use UseFunc) error {
	if use == nil {
		return errors.New("token provider: use func is required")
	}

	cred, ok := p.cache.Get()
	state := attemptFresh
	if !ok {
		state = attemptRetrying
	}

	for {
		p.logger.Debug("token attempt", zap.Stringer("state", state))

		switch state {
		case attemptFresh:
			err := use(ctx, cred)
			if err == nil || !errors.Is(err, domain.ErrUnauthorized) {
				return err
			}
			p.logger.Info("credential rejected, refreshing")
			p.cache.Invalidate(cred)
			state = attemptRetrying

		case attemptRetrying:
			fresh, err := p.refresh(ctx, cred)
			if err != nil {
				return err
			}
			cred = fresh
			state = attemptFinal

		case attemptFinal:
			return use(ctx, cred)
		}
	}
}

// Token returns the cached credential or fetches one.
func (p *TokenProvider) Token(ctx context.Context) (domain.Credential, error) {
	if cred, ok := p.cache.Get(); ok {
		return cred, nil
	}
	return p.refresh(ctx, domain.Credential{})
}

// refresh fetches a new credential unless another caller already replaced stale.
func (p *TokenProvider) refresh(ctx context.Context, stale domain.Credential) (domain.Credential, error) {
	if p.source == nil {
		return domain.Credential{}, &domain.TokenFetchError{Err: errors.New("token source is not configured")}
	}

	ch := p.flight.DoChan(refreshFlightKey, func() (interface{}, error) {
		if current, ok := p.cache.Get(); ok && !current.Same(stale) {
			return current, nil
		}

		// The shared fetch must outlive a single caller giving up.
		cred, err := p.source.FetchToken(context.WithoutCancel(ctx))
		if err != nil {
			return domain.Credential{}, err
		}
		p.cache.Set(cred)
		p.logger.Debug("credential refreshed", zap.Time("expires_at", cred.ExpiresAt()))
		return cred, nil
	})

	select {
	case <-ctx.Done():
		return domain.Credential{}, fmt.Errorf("wait for credential: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			var fetchErr *domain.TokenFetchError
			if errors.As(res.Err, &fetchErr) {
				return domain.Credential{}, res.Err
			}
			return domain.Credential{}, &domain.TokenFetchError{Err: res.Err}
		}
		return res.Val.(domain.Credential), nil
	}
}
