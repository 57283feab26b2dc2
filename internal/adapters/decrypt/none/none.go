// Package none is the decrypt backend used when nothing is configured.
package none

import (
	"context"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports"
)

type Decrypter struct{}

var _ ports.Decrypter = Decrypter{}

func (Decrypter) Decrypt(context.Context, string) (string, error) {
	return "", domain.ErrDecryptUnavailable
}
