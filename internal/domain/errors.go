package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrSecretNotFound     = errors.New("secret not found")
	ErrSettingNotFound    = errors.New("setting not found")
	ErrTransport          = errors.New("transport failure")
	ErrBodyParse          = errors.New("malformed response body")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrDecryptUnavailable = errors.New("no decrypt backend configured")
	ErrUntrustedHost      = errors.New("credentials are only sent to the configured api host")
)

// HTTPStatusError reports a non-2xx response. Body holds the parsed body when it
// was valid JSON and the raw bytes otherwise.
type HTTPStatusError struct {
	Status int
	Body   []byte
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, body)
}

func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TokenFetchError is terminal: the identity endpoint is never retried.
type TokenFetchError struct {
	Status int
	Body   []byte
	Err    error
}

func (e *TokenFetchError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("fetch access token: status %d: %v", e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch access token: %v", e.Err)
	default:
		return fmt.Sprintf("fetch access token: status %d: %s", e.Status, strings.TrimSpace(string(e.Body)))
	}
}

func (e *TokenFetchError) Unwrap() error {
	return e.Err
}

// DecryptionError carries the 1-based position of the item that failed.
type DecryptionError struct {
	Index int
	Name  string
	Err   error
}

func (e *DecryptionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("decrypt item %d (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("decrypt item %d: %v", e.Index, e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}
