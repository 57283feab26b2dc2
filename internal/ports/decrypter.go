package ports

import "context"

// Decrypter turns base64 ciphertext into plaintext using an external
// key-management service.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}
