package ports

import (
	"context"

	"github.com/bnema/schedule-from-videos/internal/domain"
)

// TokenSource fetches a fresh credential from the identity endpoint.
type TokenSource interface {
	FetchToken(ctx context.Context) (domain.Credential, error)
}
