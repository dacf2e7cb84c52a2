package auth

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/base62"
)

// KeyLength is the exact length of every access key.
const KeyLength = 32

// ErrWrongLength is matched by errors returned from ParseKey when the
// candidate does not have exactly KeyLength bytes.
var ErrWrongLength = errors.New("auth: key has wrong length")

// ParseKeyError reports a rejected key candidate.
type ParseKeyError struct {
	Length int
}

func (e *ParseKeyError) Error() string {
	return fmt.Sprintf("auth: key must be %d characters, got %d", KeyLength, e.Length)
}

// Is reports whether target is ErrWrongLength.
func (e *ParseKeyError) Is(target error) bool {
	return target == ErrWrongLength
}

// Key is an opaque access key of exactly KeyLength characters. The zero Key
// is not a valid key; obtain one from GenerateKey or ParseKey.
type Key struct {
	s string
}

// GenerateKey draws a new random key over [0-9A-Za-z] from crypto/rand.
// It panics if the system randomness source fails.
func GenerateKey() Key {
	s, err := base62.Random(KeyLength)
	if err != nil {
		panic("auth: generate key: " + err.Error())
	}
	return Key{s: s}
}

// ParseKey validates s as a key. Only the length is checked.
func ParseKey(s string) (Key, error) {
	if len(s) != KeyLength {
		return Key{}, &ParseKeyError{Length: len(s)}
	}
	return Key{s: s}, nil
}

// String returns the raw key.
func (k Key) String() string {
	return k.s
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k.s == ""
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and applies ParseKey.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
