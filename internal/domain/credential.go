package domain

import (
	"strings"
	"time"
)

// Credential is an access token issued by the identity endpoint. It is replaced
// wholesale on refresh and never mutated.
type Credential struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	IssuedAt    time.Time
}

func (c Credential) IsZero() bool {
	return strings.TrimSpace(c.AccessToken) == ""
}

// ExpiresAt returns the zero time when the endpoint gave no expiry hint.
func (c Credential) ExpiresAt() time.Time {
	if c.ExpiresIn <= 0 || c.IssuedAt.IsZero() {
		return time.Time{}
	}
	return c.IssuedAt.Add(c.ExpiresIn)
}

func (c Credential) ExpiringSoon(now time.Time, skew time.Duration) bool {
	expiresAt := c.ExpiresAt()
	if expiresAt.IsZero() {
		return false
	}
	return !expiresAt.After(now.Add(skew))
}

// AuthorizationHeader always uses the capitalized scheme; Twitch reports
// token_type in lower case but rejects "bearer" on Helix.
func (c Credential) AuthorizationHeader() string {
	return "Bearer " + c.AccessToken
}

func (c Credential) Same(other Credential) bool {
	return c.AccessToken == other.AccessToken && c.IssuedAt.Equal(other.IssuedAt)
}
