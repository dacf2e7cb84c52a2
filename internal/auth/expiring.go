// Package auth generates and verifies expiring access keys.
//
// An ExpiringKey pairs a random Key with the instant it stops being valid.
// All time comparisons go through the process clock (package clock), so
// tests control expiry by installing a stopped clock.
package auth

import (
	"fmt"
	"time"

	"github.com/faucetdb/tollgate/internal/clock"
)

// ExpiringKey is a Key together with the last instant at which it is valid.
// ValidUntil is fixed at generation; renewing a key means generating a new
// one.
type ExpiringKey struct {
	Key        Key           `json:"key"`
	ValidUntil clock.Instant `json:"valid_until"`
}

// Generate creates a random key valid for lifetime from now. It only fails
// when the expiry instant is not representable (clock.ErrOverflow) or the
// lifetime is negative; both are configuration errors, not retryable ones.
func Generate(lifetime time.Duration) (ExpiringKey, error) {
	validUntil, err := clock.Add(lifetime)
	if err != nil {
		return ExpiringKey{}, fmt.Errorf("auth: key lifetime %s: %w", lifetime, err)
	}
	return ExpiringKey{
		Key:        GenerateKey(),
		ValidUntil: validUntil,
	}, nil
}

// Option configures Verify.
type Option func(*options)

type options struct {
	op string
}

// WithOp records op as the operation in errors returned by Verify.
func WithOp(op string) Option {
	return func(o *options) { o.op = op }
}

// Verify returns nil while the clock has not passed k.ValidUntil. A key is
// still valid at exactly ValidUntil.
func Verify(k ExpiringKey, opt ...Option) error {
	opts := options{op: "auth.Verify"}
	for _, o := range opt {
		o(&opts)
	}

	if clock.Now() > k.ValidUntil {
		return KeyExpired(opts.op)
	}
	return nil
}

// ID returns the key identity.
func (k ExpiringKey) ID() Key {
	return k.Key
}

// ExpiresIn returns the time left before k expires, or zero once it has.
func (k ExpiringKey) ExpiresIn() time.Duration {
	now := clock.Now()
	if now >= k.ValidUntil {
		return 0
	}
	return k.ValidUntil.Sub(now)
}

// String renders k for humans, e.g.
// key: `YZSl4lMZupRuOpSRC3krIKR5BPB14nrJ`, valid until `2023-11-14T22:13:20Z`.
func (k ExpiringKey) String() string {
	return fmt.Sprintf("key: `%s`, valid until `%s`", k.Key, k.ValidUntil)
}
