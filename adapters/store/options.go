package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// DefaultNonceTTL is how long an issued nonce may be consumed
	DefaultNonceTTL = 5 * time.Minute

	// DefaultConsumedGrace keeps a used nonce around so duplicate verifications
	// see "already used" rather than "not found"
	DefaultConsumedGrace = 30 * time.Second

	nonceBytes = 32
)

type options struct {
	ttl   time.Duration
	grace time.Duration
}

// Option configures a nonce store
type Option func(*options)

// WithNonceTTL overrides DefaultNonceTTL
func WithNonceTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithConsumedGrace overrides DefaultConsumedGrace
func WithConsumedGrace(grace time.Duration) Option {
	return func(o *options) {
		if grace > 0 {
			o.grace = grace
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{ttl: DefaultNonceTTL, grace: DefaultConsumedGrace}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func generateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
