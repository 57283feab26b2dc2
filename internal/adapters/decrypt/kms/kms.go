// Package kms decrypts base64 ciphertext with AWS KMS.
package kms

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/bnema/schedule-from-videos/internal/ports"
	"go.uber.org/zap"
)

// Config holds KMS settings.
type Config struct {
	Region  string
	Profile string
	// KeyID is optional for symmetric keys; KMS reads it from the ciphertext blob.
	KeyID string
	// EncryptionContext must match the context used at encryption time. Lambda
	// console helpers encrypt with {"LambdaFunctionName": <name>}.
	EncryptionContext map[string]string
}

// API abstracts the KMS client for testing.
type API interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// ClientFactory builds the KMS client on first use.
type ClientFactory func(ctx context.Context, cfg Config) (API, error)

type Option func(*Decrypter)

// WithClient injects a ready client and skips lazy initialization.
func WithClient(c API) Option {
	return func(d *Decrypter) {
		if c != nil {
			d.newClient = func(context.Context, Config) (API, error) { return c, nil }
		}
	}
}

// WithClientFactory overrides how the client is built.
func WithClientFactory(f ClientFactory) Option {
	return func(d *Decrypter) {
		if f != nil {
			d.newClient = f
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Decrypter) {
		if l != nil {
			d.logger = l
		}
	}
}

// Decrypter is safe for concurrent use. The client is created at most once per
// process; a failed initialization is reported on every later call.
type Decrypter struct {
	cfg       Config
	logger    *zap.Logger
	newClient ClientFactory

	initOnce sync.Once
	initErr  error
	client   API
}

var _ ports.Decrypter = (*Decrypter)(nil)

func New(cfg Config, opts ...Option) *Decrypter {
	d := &Decrypter{
		cfg:       cfg,
		logger:    zap.NewNop(),
		newClient: loadClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func (d *Decrypter) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("kms: decode ciphertext: %w", err)
	}
	if len(blob) == 0 {
		return "", errors.New("kms: ciphertext is empty")
	}

	if err := d.ensureClient(ctx); err != nil {
		return "", err
	}

	input := &kms.DecryptInput{CiphertextBlob: blob}
	if len(d.cfg.EncryptionContext) > 0 {
		input.EncryptionContext = d.cfg.EncryptionContext
	}
	if keyID := strings.TrimSpace(d.cfg.KeyID); keyID != "" {
		input.KeyId = aws.String(keyID)
	}

	out, err := d.client.Decrypt(ctx, input)
	if err != nil {
		return "", fmt.Errorf("kms: decrypt: %w", err)
	}
	if out == nil {
		return "", errors.New("kms: decrypt returned no output")
	}

	return string(out.Plaintext), nil
}

func (d *Decrypter) ensureClient(ctx context.Context) error {
	d.initOnce.Do(func() {
		d.logger.Debug("initializing kms client", zap.String("region", d.cfg.Region))
		// The outcome is kept for the process, so one caller's cancellation must not decide it.
		client, err := d.newClient(context.WithoutCancel(ctx), d.cfg)
		if err != nil {
			d.initErr = err
			return
		}
		d.client = client
	})
	return d.initErr
}

func loadClient(ctx context.Context, cfg Config) (API, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region := strings.TrimSpace(cfg.Region); region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	if profile := strings.TrimSpace(cfg.Profile); profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("kms: load config: %w", err)
	}
	if awsCfg.Region == "" {
		return nil, errors.New("kms: aws region is required (set decrypt.region or AWS_REGION)")
	}
	return kms.NewFromConfig(awsCfg), nil
}
