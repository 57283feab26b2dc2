package domain

import (
	"errors"
	"fmt"
	"strings"
)

type SecretKind string

const (
	SecretKindEmpty      SecretKind = ""
	SecretKindPlaintext  SecretKind = "plaintext"
	SecretKindStore      SecretKind = "store"
	SecretKindCiphertext SecretKind = "ciphertext"
)

// SecretRef names a configuration value that is present in plaintext, stored in
// the local secret store, or only available as base64 ciphertext.
type SecretRef struct {
	Name       string
	Plaintext  string
	StoreKey   string
	Ciphertext string
}

func PlaintextSecret(name, value string) SecretRef {
	return SecretRef{Name: name, Plaintext: value}
}

func EncryptedSecret(name, ciphertext string) SecretRef {
	return SecretRef{Name: name, Ciphertext: ciphertext}
}

func StoredSecret(name, key string) SecretRef {
	return SecretRef{Name: name, StoreKey: key}
}

// Kind picks the first populated source: plaintext, then store key, then ciphertext.
func (r SecretRef) Kind() SecretKind {
	switch {
	case r.Plaintext != "":
		return SecretKindPlaintext
	case strings.TrimSpace(r.StoreKey) != "":
		return SecretKindStore
	case strings.TrimSpace(r.Ciphertext) != "":
		return SecretKindCiphertext
	default:
		return SecretKindEmpty
	}
}

func (r SecretRef) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("secret name is required")
	}
	if r.Kind() == SecretKindEmpty {
		return fmt.Errorf("secret %q has no value", r.Name)
	}
	return nil
}

// String never includes the plaintext.
func (r SecretRef) String() string {
	kind := r.Kind()
	if kind == SecretKindEmpty {
		return r.Name + "(empty)"
	}
	return fmt.Sprintf("%s(%s)", r.Name, kind)
}
