package application

import (
	"sync"
	"time"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports"
)

const defaultExpirySkew = 30 * time.Second

// TokenCache holds at most one credential for the process.
type TokenCache struct {
	mu    sync.Mutex
	cred  domain.Credential
	clock ports.Clock
	skew  time.Duration
}

func NewTokenCache(clock ports.Clock) *TokenCache {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &TokenCache{clock: clock, skew: defaultExpirySkew}
}

// Get reports a credential whose expiry hint has passed as absent. Without a
// hint the clock is not consulted.
func (c *TokenCache) Get() (domain.Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cred.IsZero() {
		return domain.Credential{}, false
	}
	if c.cred.ExpiresAt().IsZero() {
		return c.cred, true
	}
	if c.cred.ExpiringSoon(c.clock.Now(), c.skew) {
		return domain.Credential{}, false
	}
	return c.cred, true
}

func (c *TokenCache) Set(cred domain.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cred = cred
}

func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cred = domain.Credential{}
}

// Invalidate clears the cache only while it still holds stale.
func (c *TokenCache) Invalidate(stale domain.Credential) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cred.IsZero() || !c.cred.Same(stale) {
		return false
	}
	c.cred = domain.Credential{}
	return true
}
